package models

import "time"

// BackupVersion is written into every envelope produced by this build.
const BackupVersion = "1.0"

// BackupFile is one sidecar captured in a backup.
type BackupFile struct {
	RelativePath string `json:"relativePath"`
	OriginalPath string `json:"originalPath"`
	Content      string `json:"content"`
	Hash         string `json:"hash,omitempty"`
	Size         int64  `json:"size"`
}

// BackupEnvelope is the serialized backup document.
type BackupEnvelope struct {
	Timestamp   time.Time    `json:"timestamp"`
	Version     string       `json:"version"`
	Files       []BackupFile `json:"files"`
	Collections []Collection `json:"collections"`
}
