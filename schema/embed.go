package schema

import _ "embed"

// ManifestV1Schema contains the JSON schema for sidekick manifests.
//
//go:embed sidekick.v1.json
var ManifestV1Schema []byte
