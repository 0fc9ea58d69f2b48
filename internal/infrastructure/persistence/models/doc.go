// Package models contains GORM persistence models that map to database
// tables. They are kept apart from domain entities so the domain layer
// stays free of ORM tags; each model converts with ToDomain/FromDomain.
//
// - base.go: shared columns
// - profile.go: profiles and their child content tables
// - reset.go: reset_history
// - billing.go: payment_transactions
// - messaging.go: email_queue
// - campaign.go: marketing_campaigns, campaign_groups, campaign_executions
package models
