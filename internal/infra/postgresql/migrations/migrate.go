package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/wapanel/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_users",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.UserModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.UserModel{})
			},
		},
		{
			ID: "000002_create_conversations",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.ConversationModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ConversationModel{})
			},
		},
		{
			ID: "000003_create_messages",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.MessageModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_conversation_ts ON messages (conversation_id, timestamp)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.MessageModel{})
			},
		},
		{
			ID: "000004_create_campaigns",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.CampaignModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_campaigns_owner_created ON campaigns (owner_id, created_at)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.CampaignModel{})
			},
		},
		{
			ID: "000005_create_campaign_items",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.CampaignItemModel{}); err != nil {
					return err
				}
				// Serves the dispatcher's pending scan in creation order.
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_campaign_items_pending ON campaign_items (campaign_id, created_at, id) WHERE status = 'PENDING'`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.CampaignItemModel{})
			},
		},
	})

	return m.Migrate()
}
