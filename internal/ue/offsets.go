package ue

import (
	"errors"
	"log/slog"

	"github.com/Lyall/MandragoraFix/internal/image"
	"github.com/Lyall/MandragoraFix/internal/logging"
	"github.com/Lyall/MandragoraFix/internal/scan"
	"github.com/Lyall/MandragoraFix/internal/sigs"
)

// Site names of the object model entry points in the signature table.
const (
	SiteGObjects     = "GObjects"
	SiteAppendString = "AppendString"
	SiteProcessEvent = "ProcessEvent"
)

var (
	errNoSite     = errors.New("no such site in signature table")
	errScanFailed = errors.New("pattern scan failed")
)

// Offsets are the absolute addresses of the object model entry points.
type Offsets struct {
	GObjects     uintptr
	AppendString uintptr
	ProcessEvent uintptr
}

// Complete reports whether every entry point was found.
func (o Offsets) Complete() bool {
	return o.GObjects != 0 && o.AppendString != 0 && o.ProcessEvent != 0
}

// ResolveOffsets scans img for the entry points named in tab. A missing
// site is logged and leaves its address zero.
func ResolveOffsets(img *image.Image, tab *sigs.Table, log *slog.Logger) Offsets {
	log = logging.Or(log)
	var o Offsets
	for _, e := range []struct {
		name string
		dst  *uintptr
	}{
		{SiteGObjects, &o.GObjects},
		{SiteAppendString, &o.AppendString},
		{SiteProcessEvent, &o.ProcessEvent},
	} {
		addr, err := resolve(img, tab.Site(e.name), log)
		if err != nil {
			log.Error("Offsets: "+e.name, "error", err)
			continue
		}
		*e.dst = addr
		log.Info("Offsets: "+e.name, "offset", img.Offset(addr).String())
	}
	log.Info("----------")
	return o
}

func resolve(img *image.Image, s *sigs.Site, log *slog.Logger) (uintptr, error) {
	if s == nil {
		return 0, errNoSite
	}
	addr, ok := scan.Find(img, s.Signature())
	if !ok {
		return 0, errScanFailed
	}
	if s.Operand == nil {
		return addr, nil
	}
	if err := scan.CheckOperand(img, addr, *s.Operand); err != nil {
		log.Warn("Offsets: "+s.Name, "error", err)
	}
	return scan.Absolute(img, addr+uintptr(*s.Operand))
}
