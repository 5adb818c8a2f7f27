package main

import "C"

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	mf "github.com/Lyall/MandragoraFix"
	"github.com/Lyall/MandragoraFix/internal/config"
	"github.com/Lyall/MandragoraFix/internal/fix"
	"github.com/Lyall/MandragoraFix/internal/image"
	"github.com/Lyall/MandragoraFix/internal/logging"
	"github.com/Lyall/MandragoraFix/internal/sigs"
	"github.com/Lyall/MandragoraFix/internal/ue"
)

// settle is how long the game gets to finish its own start-up before the
// image is scanned.
const settle = 2 * time.Second

func init() {
	go run()
}

func run() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	dir := filepath.Dir(exe)
	// the log stays open for the life of the process
	log, _, err := logging.Open(dir, fix.Name+".log", slog.LevelInfo)
	if err != nil {
		return
	}
	if err := start(log, exe, dir); err != nil {
		log.Error("fix disabled", "error", err)
	}
}

func start(log *slog.Logger, exe, dir string) error {
	time.Sleep(settle)
	img, err := image.Loaded(0)
	if err != nil {
		return err
	}
	logging.Banner(log, fix.Name, fix.Version, logging.Module{
		Name:      img.Name,
		Path:      exe,
		Base:      img.Base,
		Timestamp: img.Timestamp,
	})
	if err := logging.CheckCPU(); err != nil {
		return err
	}
	cfg, err := config.Load(config.PathFor(dir), log)
	if err != nil {
		return err
	}
	tab := sigs.Default()
	trap, err := mf.NewNativeTrap()
	if err != nil {
		return err
	}
	_, err = fix.Start(fix.Options{
		Image:  img,
		Table:  tab,
		Config: cfg,
		Trap:   trap,
		Log:    log,
		Model: func(o ue.Offsets) ue.Model {
			return ue.NewNative(ue.ProcessMemory(), ue.NewRuntime(o.AppendString, o.ProcessEvent), o.GObjects, nil, log)
		},
	})
	return err
}
