package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/wippyai/arm-runtime/arm"
	"github.com/wippyai/arm-runtime/platform"
	"github.com/wippyai/arm-runtime/runtime"
)

func newDisasmCmd(g *globalFlags) *cobra.Command {
	var (
		f     imageFlags
		count int
	)
	cmd := &cobra.Command{
		Use:   "disasm <image>",
		Short: "Disassemble instructions from the entry point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, img, cleanup, err := setup(ctx, g, args[0], &f, platform.NewMemoryScreen(g.width, g.height))
			if err != nil {
				return err
			}
			defer cleanup()

			pc, _, err := f.entryPoint(img)
			if err != nil {
				return err
			}
			for _, ins := range arm.DisassembleRange(rt.Core().Memory(), pc&^1, count, pc&1 != 0) {
				fmt.Println(ins.String())
			}
			return nil
		},
	}
	addImageFlags(cmd, &f)
	cmd.Flags().IntVarP(&count, "count", "n", 32, "number of instructions")
	return cmd
}

func newLayoutCmd(g *globalFlags) *cobra.Command {
	var f imageFlags
	cmd := &cobra.Command{
		Use:   "layout <image>",
		Short: "Print the guest memory map after loading an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rt, _, cleanup, err := setup(ctx, g, args[0], &f, platform.NewMemoryScreen(g.width, g.height))
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Fprint(os.Stdout, layoutTree(rt).String())
			return nil
		},
	}
	addImageFlags(cmd, &f)
	return cmd
}

// layoutTree renders mapped regions, heap blocks and native functions.
func layoutTree(rt *runtime.Runtime) treeprint.Tree {
	core := rt.Core()
	tree := treeprint.NewWithRoot(fmt.Sprintf("guest memory %#x bytes", core.Memory().Size()))

	regions := tree.AddBranch("regions")
	for _, r := range core.Memory().Regions() {
		regions.AddNode(r.String())
	}

	h := core.Heap()
	heapNode := tree.AddMetaBranch(fmt.Sprintf("%d/%d bytes used", h.InUse(), h.Size()), "heap")
	for _, b := range h.Blocks() {
		state := "free"
		if b.Used {
			state = "used"
		}
		heapNode.AddMetaNode(state, fmt.Sprintf("%#08x +%#x", b.Addr, b.Size))
	}

	natives := tree.AddBranch("natives")
	for _, ns := range rt.Hosts().Namespaces() {
		branch := natives.AddBranch(ns)
		for _, name := range rt.Hosts().Functions(ns) {
			addr, _ := rt.Hosts().Lookup(ns, name)
			branch.AddMetaNode(strconv.FormatUint(uint64(addr), 16), name)
		}
	}
	return tree
}
