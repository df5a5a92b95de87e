package mailmerge

import (
	"fmt"
	"os"
	"path/filepath"
)

// Default filenames, resolved in the working directory.
const (
	DefaultTemplatePath = "mailmerge_template.txt"
	DefaultDatabasePath = "mailmerge_database.csv"
	DefaultConfigPath   = "mailmerge_server.conf"
)

const sampleTemplate = `TO: {{email}}
SUBJECT: Testing mailmerge
FROM: My Self <myself@mydomain.com>

Hi, {{name}},

Your number is {{number}}.
`

const sampleDatabase = `email,name,number
myself@mydomain.com,"Myself",17
bob@bobdomain.com,"Bob",42
`

const sampleConfig = `# Mailmerge delivery configuration.
#
# Pick a transport and fill in its section. Secrets come from the
# environment (MAILMERGE_SMTP_PASSWORD, MAILMERGE_SENDGRID_API_KEY,
# MAILMERGE_MAILGUN_API_KEY), never from this file.
transport: smtp

# Cap on messages per minute. Zero sends as fast as the server accepts.
ratelimit: 0

smtp:
  host: smtp.mydomain.com
  port: 25
  # Connection security: never | starttls | ssl/tls
  security: never
  # Leave empty for unauthenticated relays.
  username: ""

# ses:
#   region: us-east-1
#
# mailgun:
#   domain: mg.mydomain.com
#
# mbox:
#   path: outbox.mbox
`

// WriteSampleFiles creates a starter template, database and server
// configuration in dir, ready for the default run to consume. Existing
// files are never overwritten.
func WriteSampleFiles(dir string) error {
	files := []struct {
		name    string
		content string
	}{
		{DefaultTemplatePath, sampleTemplate},
		{DefaultDatabasePath, sampleDatabase},
		{DefaultConfigPath, sampleConfig},
	}

	for _, file := range files {
		path := filepath.Join(dir, file.name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if os.IsExist(err) {
				return fmt.Errorf("refusing to overwrite %s", path)
			}
			return fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := f.WriteString(file.content); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}
