package main

import (
	"github.com/minios-project/minios/cfg"
	"github.com/minios-project/minios/internal/klog"
	"github.com/minios-project/minios/internal/kfs"
	"github.com/minios-project/minios/internal/metrics"
	"github.com/minios-project/minios/internal/proc"
	"github.com/minios-project/minios/internal/vm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// kernel bundles every component a booted instance needs, the way a real
// kernel's global state (ptable, root_sb, the frame allocator) would be
// reachable from anywhere once boot completes.
type kernel struct {
	Config  cfg.Config
	FS      *kfs.FS
	Frames  *vm.FrameAllocator
	Metrics *metrics.Handle
	Procs   *proc.Table
	Log     *klog.Logger
	Init    *proc.Process
	stop    chan struct{}
}

func boot(c cfg.Config) *kernel {
	log := klog.New("minios", klog.Config{File: c.LogFile, Severity: klog.SeverityFromString(c.LogSeverity)})

	fs := kfs.New()
	frames := vm.NewFrameAllocator(c.FrameCapacity)
	m := metrics.NewHandle(prometheus.NewRegistry())
	procs := proc.NewTable(fs, frames, m, proc.Limits{
		MaxFile:             c.ProcMaxFile,
		MaxArg:              c.ProcMaxArg,
		NameLen:             c.ProcNameLen,
		StackPages:          c.StackPages,
		UserStackUpperBound: vm.VA(c.UserStackUpperBound),
		PipeSize:            c.PipeSize,
	})

	init, e := procs.BootInit()
	if e != 0 {
		log.Errorf("boot: failed to create init_proc: %v", e)
		panic("boot: could not create init_proc")
	}

	k := &kernel{Config: c, FS: fs, Frames: frames, Metrics: m, Procs: procs, Log: log, Init: init, stop: make(chan struct{})}
	go procs.RunInitReaper(init, k.stop)

	log.Infof("booted init_proc (pid=%d)", init.PID)
	return k
}

func (k *kernel) shutdown() {
	close(k.stop)
}

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Boot init_proc and immediately shut down",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		k := boot(c)
		defer k.shutdown()
		k.Log.Infof("init_proc live, nothing scheduled, shutting down")
		return nil
	},
}
