// Package migrations is the bot's schema history.
//
// Each unit moves the schema forward by one version. New units are appended to
// All with From equal to the previous unit's To; existing units are never
// edited once released, since databases in the field have already applied them.
// Statements are limited to SQL that PostgreSQL, MySQL and SQLite all accept,
// and every statement must succeed when run a second time: an unreadable
// version marker restarts the walk from version 0. MySQL has no IF NOT EXISTS
// for ADD COLUMN or CREATE INDEX, so schema changes are new tables created
// with CREATE TABLE IF NOT EXISTS.
package migrations

import "github.com/novabot/dbupdate/pkg/migrator"

// All returns every registered unit in version order.
func All() []migrator.Unit {
	return []migrator.Unit{
		{
			// Version tracking.
			From: 0,
			To:   1,
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS bot_meta (
					meta_name VARCHAR(32) NOT NULL PRIMARY KEY,
					meta_value VARCHAR(32) NOT NULL
				)`,
			},
		},
		{
			// Broadcast services and per-channel subscriptions.
			From: 1,
			To:   2,
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS services (
					id INTEGER NOT NULL PRIMARY KEY,
					name VARCHAR(32) NOT NULL,
					display_name VARCHAR(64) NOT NULL,
					description VARCHAR(255) NOT NULL,
					activated INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS service_subscriptions (
					server_id VARCHAR(32) NOT NULL,
					channel_id VARCHAR(32) NOT NULL,
					service_id INTEGER NOT NULL,
					subscribed INTEGER NOT NULL DEFAULT 1,
					PRIMARY KEY (channel_id, service_id)
				)`,
			},
		},
		{
			// Per-command usage counters.
			From: 2,
			To:   3,
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS command_usage (
					server_id VARCHAR(32) NOT NULL,
					input VARCHAR(64) NOT NULL,
					uses INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY (server_id, input)
				)`,
			},
		},
		{
			// Per-server settings.
			From: 3,
			To:   4,
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS server_settings (
					server_id VARCHAR(32) NOT NULL PRIMARY KEY,
					prefix VARCHAR(8) NOT NULL DEFAULT '!',
					locale VARCHAR(16) NOT NULL DEFAULT 'en'
				)`,
			},
		},
	}
}

// Registry builds the registry from All.
func Registry() (*migrator.Registry, error) {
	return migrator.NewRegistry(All()...)
}
