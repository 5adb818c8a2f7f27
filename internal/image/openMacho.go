package image

import (
	"debug/macho"
	"io"
)

type machoFile struct {
	macho *macho.File
}

func openMacho(r io.ReaderAt) (rawFile, error) {
	f, err := macho.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &machoFile{f}, nil
}

const machoAttrPureInstructions = 0x80000000

func (f *machoFile) Image() (*Image, error) {
	img := new(Image)
	if text := f.macho.Segment("__TEXT"); text != nil {
		img.Base = uintptr(text.Addr)
	}
	for _, l := range f.macho.Loads {
		if seg, ok := l.(*macho.Segment); ok && seg.Name != "__PAGEZERO" {
			if end := uintptr(seg.Addr+seg.Memsz) - img.Base; end > img.Size {
				img.Size = end
			}
		}
	}
	for _, s := range f.macho.Sections {
		// zero-fill sections have no file data
		if s.Offset == 0 {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, err
		}
		img.Sections = append(img.Sections, Section{
			Name: s.Name,
			Addr: uintptr(s.Addr),
			Data: data,
			Exec: s.Flags&machoAttrPureInstructions != 0,
		})
	}
	return img, nil
}
