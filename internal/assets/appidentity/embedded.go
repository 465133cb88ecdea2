package appidentityassets

import _ "embed"

// YAML is the embedded copy of `.fulmen/app.yaml` so a standalone nodeproxy
// binary still resolves its identity. Keep both files identical.
//
//go:embed app.yaml
var YAML []byte
