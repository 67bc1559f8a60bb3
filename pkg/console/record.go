package console

import (
	"strconv"

	"github.com/core-tools/procsim/pkg/process"
)

// Record is one line item of the end-of-run process report.
type Record struct {
	ID             process.ID
	Name           string
	Priority       process.Priority
	Status         process.Status
	Registers      process.Registers
	NextSiblingID  process.ID
	HasNextSibling bool
	ElapsedSeconds uint64
}

func NewRecord(snapshot process.Snapshot, nextSibling process.ID, hasNextSibling bool) Record {
	record := Record{
		ID:             snapshot.ID,
		Name:           snapshot.Name,
		Priority:       snapshot.Priority,
		Status:         snapshot.Status,
		Registers:      snapshot.Registers,
		ElapsedSeconds: snapshot.ElapsedSeconds,
	}
	if hasNextSibling {
		record.NextSiblingID = nextSibling
		record.HasNextSibling = true
	}
	return record
}

// NextSibling is the sibling id as text, or "none"
func (r Record) NextSibling() string {
	if !r.HasNextSibling {
		return "none"
	}
	return strconv.Itoa(int(r.NextSiblingID))
}
