package appidentityassets

import _ "embed"

// YAML is the identity compiled into the binary. It is used whenever no
// external identity file is found.
//
//go:embed app.yaml
var YAML []byte
