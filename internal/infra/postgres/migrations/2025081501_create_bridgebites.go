package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_bridgebites.sql
var createBridgebitesSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createBridgebitesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS post_comments;
				DROP TABLE IF EXISTS post_likes;
				DROP TABLE IF EXISTS feed_posts;
				DROP TABLE IF EXISTS friendships;
				DROP TABLE IF EXISTS user_challenges;
				DROP TABLE IF EXISTS profiles;
				DROP TABLE IF EXISTS challenges`)
			return err
		},
	)
}
