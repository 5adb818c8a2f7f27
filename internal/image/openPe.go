package image

import (
	"debug/pe"
	"io"
)

type peFile struct {
	pe *pe.File
}

func openPE(r io.ReaderAt) (rawFile, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &peFile{f}, nil
}

func (f *peFile) Image() (*Image, error) {
	img := &Image{Timestamp: f.pe.FileHeader.TimeDateStamp}
	switch oh := f.pe.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		img.Base = uintptr(oh.ImageBase)
		img.Size = uintptr(oh.SizeOfImage)
	case *pe.OptionalHeader32:
		img.Base = uintptr(oh.ImageBase)
		img.Size = uintptr(oh.SizeOfImage)
	}
	for _, s := range f.pe.Sections {
		data, err := s.Data()
		if err != nil {
			return nil, err
		}
		if s.VirtualSize != 0 && uint32(len(data)) > s.VirtualSize {
			data = data[:s.VirtualSize]
		}
		img.Sections = append(img.Sections, Section{
			Name: s.Name,
			Addr: img.Base + uintptr(s.VirtualAddress),
			Data: data,
			Exec: s.Characteristics&pe.IMAGE_SCN_MEM_EXECUTE != 0,
		})
	}
	return img, nil
}
