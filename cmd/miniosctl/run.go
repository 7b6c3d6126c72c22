package main

import (
	"fmt"
	"os"

	"github.com/minios-project/minios/internal/errno"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <elf-binary> [argv...]",
	Short: "Load and spawn a program under init_proc",
	Long: `run stages an ELF binary into the simulated filesystem and spawns it
under init_proc: a fresh address space is built from its PT_LOAD segments
and its argv is laid out on a freshly mapped stack. The thread scheduler and
trap-frame dispatch that would actually execute the loaded instructions are
outside this module's scope, so run reports the spawned process's pid and
entry point rather than waiting for an exit that nothing will ever trigger.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		k := boot(c)
		defer k.shutdown()

		binPath := args[0]
		argv := args

		raw, err := os.ReadFile(binPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", binPath, err)
		}

		root, e := k.FS.GetInode(k.FS.RootIno())
		if e != errno.OK {
			return fmt.Errorf("resolving root inode: %v", e)
		}
		name := baseName(binPath)
		ino, e := k.FS.CreateFile(root, name)
		if e != errno.OK {
			return fmt.Errorf("staging %s into the simulated filesystem: %v", binPath, e)
		}
		if e := k.FS.WriteAt(ino, raw); e != errno.OK {
			return fmt.Errorf("staging %s's contents: %v", binPath, e)
		}

		child, e := k.Procs.Spawn(k.Init, name, ino, argv)
		if e != errno.OK {
			return fmt.Errorf("spawn: %v", e)
		}

		k.Log.Infof("spawned pid %d, entry point %#x", child.PID, child.EntryPoint)
		fmt.Printf("spawned pid %d, entry point %#x\n", child.PID, child.EntryPoint)
		return nil
	},
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
