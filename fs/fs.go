package appfs

import "embed"

// FS holds the files shipped inside the binaries: SQL migrations, email templates and assets.
// The templates are listed by glob so the _base layouts are embedded too.
//go:embed migrations templates/email/* assets
var FS embed.FS
