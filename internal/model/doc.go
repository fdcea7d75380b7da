package model

// Package model defines domain data structures shared across the bot: format
// descriptors and catalogs, quality ladders and selection plans, artifacts and
// delivery units, session states, playlists, and the closed error taxonomy.
