package ocr

import (
	"os"

	"google.golang.org/api/option"
)

// credentialOptions returns client options for the configured credentials.
// Inline GOOGLE_CREDENTIALS wins over a GOOGLE_APPLICATION_CREDENTIALS file.
// An empty result means application default credentials.
func credentialOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}
