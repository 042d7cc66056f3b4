// Package dashboard provides the embedded web UI assets for PingRank.
//
// The page subscribes to /api/sse for live rankings, filters by category,
// and starts manual runs through POST /api/rounds.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
//	assets/
//	  index.html    - dashboard page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
