package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const referencePrefix = "EB"

// ReferenceGenerator produces ledger references of the form
// EB + yyyyMMddHHmmss + 8 uppercase characters.
type ReferenceGenerator interface {
	Next(now time.Time) string
}

type UUIDReferenceGenerator struct{}

func (UUIDReferenceGenerator) Next(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return referencePrefix + now.Format("20060102150405") + strings.ToUpper(suffix)
}
