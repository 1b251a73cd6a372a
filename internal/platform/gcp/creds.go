package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/envutil"
)

// credentialEnv is checked in order; the first non-empty value wins. Inline
// JSON and file paths are both accepted.
var credentialEnv = []string{
	"SHARD_GCS_CREDENTIALS",
	"GOOGLE_APPLICATION_CREDENTIALS_JSON",
	"GOOGLE_APPLICATION_CREDENTIALS",
}

// shardClientOptions returns the auth options for the shard bucket, or nil to
// fall back to application default credentials.
func shardClientOptions() []option.ClientOption {
	for _, key := range credentialEnv {
		creds := strings.TrimSpace(envutil.String(key, ""))
		if creds == "" {
			continue
		}
		if strings.HasPrefix(creds, "{") {
			return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
		}
		return []option.ClientOption{option.WithCredentialsFile(creds)}
	}
	return nil
}
