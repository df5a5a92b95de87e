// Package mailmerge sends personalized email by combining a message
// template with rows from a CSV database.
//
// A template is a plain text file: a block of email headers, a blank
// line, then the body. {{field}} placeholders anywhere in the headers,
// the body, or an Attachment header are replaced with the matching
// column of each database row, producing one complete message per row.
// Messages are delivered through a configurable transport; a dry run
// walks the identical pipeline and prints the identical payload without
// touching the network.
//
// # Basic Usage
//
//	cfg := mailmerge.DefaultRunConfig()
//	cfg.TemplatePath = "mailmerge_template.txt"
//	cfg.DatabasePath = "mailmerge_database.csv"
//
//	run, err := mailmerge.New(cfg, mailmerge.WithNoLimit())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer run.Close()
//
//	result, err := run.Run(context.Background())
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("sent %d messages\n", result.Sent)
//
// # Supported Transports
//
//   - Generic SMTP (plain, STARTTLS, or implicit TLS)
//   - AWS SES
//   - SendGrid
//   - Mailgun
//   - Local mbox file
//   - Dry run
//
// # Features
//
//   - Two-phase template parsing with explicit errors
//   - Dry runs byte-identical to live sends
//   - Send limit, resume offset, and rate limiting
//   - Attachments with deterministic MIME assembly
//   - Bcc delivered via the envelope, never the payload
//   - Distributed tracing with OpenTelemetry
//   - Context-aware operations
package mailmerge
