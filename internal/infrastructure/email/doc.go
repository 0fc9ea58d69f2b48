// Package email delivers transactional email through Resend and SendGrid
// and renders the message templates the application sends.
package email
