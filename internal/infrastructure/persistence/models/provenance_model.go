package models

import "time"

// ProvenanceModel is the persisted shape of a TaggedData node. ScanResults
// and ParentIDs are stored as JSON text — the scan result shape is
// inspected by humans during audit review far more often than it is
// queried by SQL, so a relational breakout is not worth the join.
type ProvenanceModel struct {
	DataID         string `gorm:"primaryKey;size:64"`
	Content        string `gorm:"type:text"`
	Source         string `gorm:"size:32;index"`
	TrustLevel     string `gorm:"size:16;index"`
	OriginatedFrom string `gorm:"size:128"`
	ParentIDs      string `gorm:"type:text"` // JSON array of data ids
	ScanResults    string `gorm:"type:text"` // JSON map of scanner name -> ScanResult
	CreatedAt      time.Time
}

func (ProvenanceModel) TableName() string {
	return "provenance"
}

// FileProvenanceModel records the last writer of a filesystem path.
type FileProvenanceModel struct {
	FilePath     string `gorm:"primaryKey;size:512"`
	WriterDataID string `gorm:"size:64;index"`
	UpdatedAt    time.Time
}

func (FileProvenanceModel) TableName() string {
	return "file_provenance"
}
