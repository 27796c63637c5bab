/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// irtool inspects and converts serialized graph containers.
//
// Usage:
//
//	irtool info model.xml      # layer/edge/payload statistics
//	irtool hash model.xml      # structural fingerprint
//	irtool convert model.xml out.xml --to-version 10
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/irgraph/ir"
	"github.com/gomlx/irgraph/serialize"
	"github.com/janpfeifer/must"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var rootCmd = &cobra.Command{
	Use:   "irtool",
	Short: "Inspect and convert serialized graph containers",
}

var infoCmd = &cobra.Command{
	Use:   "info <model.xml>",
	Short: "Print layer, edge and payload statistics",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f := must.M1(serialize.DeserializeFiles(args[0], ""))
		printInfo(f, args[0])
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash <model.xml>",
	Short: "Print the structural fingerprint of a container",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f := must.M1(serialize.DeserializeFiles(args[0], ""))
		fingerprint := must.M1(serialize.Hash(f, serialize.Options{}))
		fmt.Printf("%016x\n", fingerprint)
	},
}

var (
	flagToVersion     int
	flagDeterministic bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <in.xml> <out.xml>",
	Short: "Re-serialize a container, optionally changing its format version",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		f := must.M1(serialize.DeserializeFiles(args[0], ""))
		// The restored version hint would conflict with the requested one.
		delete(f.RTInfo(), "version")
		opts := serialize.Options{
			Version:       serialize.Version(flagToVersion),
			Deterministic: flagDeterministic,
		}
		must.M(serialize.SerializeToFiles(f, args[1], "", opts))
		klog.V(1).Infof("converted %s to %s (version %d)", args[0], args[1], flagToVersion)
	},
}

func printInfo(f *ir.Function, path string) {
	ordered := f.OrderedOps()
	var edges int
	var payloadBytes int64
	typeCounts := make(map[string]int)
	for _, n := range ordered {
		edges += n.NumInputs()
		typeCounts[n.TypeName()]++
		if c, ok := n.Op().(ir.ConstantOp); ok {
			payloadBytes += c.Value().Memory()
		}
	}

	fmt.Printf("container: %s\n", path)
	fmt.Printf("function:  %s\n", f.Name())
	fmt.Printf("layers:    %d\n", len(ordered))
	fmt.Printf("edges:     %d\n", edges)
	fmt.Printf("inputs:    %d\n", len(f.Parameters()))
	fmt.Printf("outputs:   %d\n", len(f.Results()))
	fmt.Printf("payload:   %s\n", humanize.IBytes(uint64(payloadBytes)))
	fmt.Println("layer types:")
	for _, n := range ordered {
		if count := typeCounts[n.TypeName()]; count > 0 {
			fmt.Printf("  %-12s %d\n", n.TypeName(), count)
			typeCounts[n.TypeName()] = 0
		}
	}
}

func main() {
	klog.InitFlags(nil)
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	convertCmd.Flags().IntVar(&flagToVersion, "to-version", 0, "Target container version (10 or 11; 0 keeps the default)")
	convertCmd.Flags().BoolVar(&flagDeterministic, "deterministic", false, "Omit auto-generated names from the output")
	rootCmd.AddCommand(infoCmd, hashCmd, convertCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
