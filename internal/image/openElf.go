package image

import (
	"debug/elf"
	"io"
)

type elfFile struct {
	elf *elf.File
}

func openElf(r io.ReaderAt) (rawFile, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &elfFile{f}, nil
}

func (e *elfFile) Image() (*Image, error) {
	img := new(Image)
	var end uint64
	for _, p := range e.elf.Progs {
		if p.Type == elf.PT_LOAD && p.Vaddr+p.Memsz > end {
			end = p.Vaddr + p.Memsz
		}
	}
	img.Size = uintptr(end)
	for _, s := range e.elf.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Type == elf.SHT_NOBITS {
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
			Exec: s.Flags&elf.SHF_EXECINSTR != 0,
		})
	}
	return img, nil
}
