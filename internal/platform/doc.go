package platform

// Package platform contains filesystem glue around the working directory:
// directory and file-name helpers, discovery of files a back end wrote
// without reporting their path, the Cleaner that removes working files, the
// cron-driven Janitor that sweeps orphaned ones, and playlist expansion via
// github.com/ytget/ytdlp/v2.
