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

// Package serialize implements the versioned container codec of the graph
// engine: an XML topology document plus a binary blob of constant payloads.
//
// Two format versions are supported. Version 10 lists layers in strict
// topological order and carries no runtime info; version 11 groups parameters
// first and results last and embeds runtime info. Constant payloads are
// deduplicated in the binary blob. Serialization is deterministic: the same
// graph structure produces the same bytes regardless of how and when its
// nodes were allocated.
package serialize

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gomlx/irgraph/ir"
	"github.com/gomlx/irgraph/types/dims"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Version selects the container format version.
type Version int

const (
	// Unspecified defaults to the newest version, V11.
	Unspecified Version = 0
	V10         Version = 10
	V11         Version = 11
)

// Options configure serialization.
type Options struct {
	// Version of the container format. Must agree with the function's
	// "version" runtime-info hint when both are set.
	Version Version

	// Deterministic omits auto-generated names from the output, so two
	// structurally identical graphs serialize to identical bytes.
	Deterministic bool
}

// typeNameTranslations maps internal operation type names to their serialized
// spelling.
var typeNameTranslations = map[string]string{
	"Constant": "Const",
	"PRelu":    "PReLU",
	"Relu":     "ReLU",
	"Softmax":  "SoftMax",
}

var reverseTypeNameTranslations = func() map[string]string {
	out := make(map[string]string, len(typeNameTranslations))
	for from, to := range typeNameTranslations {
		out[to] = from
	}
	return out
}()

func translateTypeName(name string) string {
	if translated, found := typeNameTranslations[name]; found {
		return translated
	}
	return name
}

func reverseTranslateTypeName(name string) string {
	if original, found := reverseTypeNameTranslations[name]; found {
		return original
	}
	return name
}

// resolveVersion reconciles the explicit option with the function's
// runtime-info hint.
func resolveVersion(f *ir.Function, requested Version) (Version, error) {
	hint := Unspecified
	if raw, found := f.RTInfo()["version"]; found {
		switch v := raw.(type) {
		case int:
			hint = Version(v)
		case int64:
			hint = Version(v)
		default:
			return Unspecified, errors.Errorf("function %q carries a non-integer version hint %v", f.Name(), raw)
		}
	}
	if hint != Unspecified && hint != V10 && hint != V11 {
		return Unspecified, errors.Errorf("function %q hints at unsupported container version %d", f.Name(), int(hint))
	}
	if requested != Unspecified && requested != V10 && requested != V11 {
		return Unspecified, errors.Errorf("unsupported container version %d", int(requested))
	}
	if requested != Unspecified && hint != Unspecified && requested != hint {
		return Unspecified, errors.Errorf("requested container version %d conflicts with the function's version hint %d",
			int(requested), int(hint))
	}
	if requested != Unspecified {
		return requested, nil
	}
	if hint != Unspecified {
		return hint, nil
	}
	return V11, nil
}

// serializationOrder lists the layers to emit. V10 keeps the strict
// topological order; V11 groups parameters first and results last, with sinks
// between the interior operations and the results.
func serializationOrder(f *ir.Function, version Version) []*ir.Node {
	ordered := f.OrderedOps()
	if version == V10 {
		return ordered
	}
	boundary := make(map[*ir.Node]bool)
	for _, n := range f.Parameters() {
		boundary[n] = true
	}
	for _, n := range f.Sinks() {
		boundary[n] = true
	}
	for _, n := range f.Results() {
		boundary[n] = true
	}
	out := make([]*ir.Node, 0, len(ordered))
	out = append(out, f.Parameters()...)
	for _, n := range ordered {
		if !boundary[n] {
			out = append(out, n)
		}
	}
	out = append(out, f.Sinks()...)
	out = append(out, f.Results()...)
	return out
}

// uniqueNamer assigns collision-free serialized names by iteratively
// appending numeric suffixes.
type uniqueNamer struct {
	taken map[string]bool
}

func newUniqueNamer() *uniqueNamer {
	return &uniqueNamer{taken: make(map[string]bool)}
}

func (un *uniqueNamer) claim(base string) string {
	name := base
	for suffix := 0; un.taken[name]; suffix++ {
		name = fmt.Sprintf("%s_%d", base, suffix)
	}
	un.taken[name] = true
	return name
}

// escapeTensorNames joins sorted name aliases with commas, escaping commas
// inside a name.
func escapeTensorNames(names []string) string {
	escaped := make([]string, len(names))
	for i, name := range names {
		escaped[i] = strings.ReplaceAll(name, ",", `\,`)
	}
	return strings.Join(escaped, ",")
}

func formatDim(d dims.Dimension) string {
	if !d.IsStatic() {
		return "-1"
	}
	return strconv.FormatInt(d.Length(), 10)
}

// rtInfoElement renders a runtime-info map as sorted attribute children.
func rtInfoElement(parent *xmlElement, info map[string]any, skip map[string]bool) {
	keys := slices.DeleteFunc(maps.Keys(info), func(k string) bool { return skip[k] })
	if len(keys) == 0 {
		return
	}
	slices.Sort(keys)
	rt := parent.child("rt_info")
	for _, k := range keys {
		rt.child("attribute").
			setAttr("name", k).
			setAttr("value", fmt.Sprint(info[k]))
	}
}

type edge struct {
	fromLayer, fromPort, toLayer, toPort int
}

// Serialize writes the function's topology document to xmlW and its constant
// payloads to binW.
func Serialize(f *ir.Function, xmlW, binW io.Writer, opts Options) error {
	version, err := resolveVersion(f, opts.Version)
	if err != nil {
		return err
	}

	order := serializationOrder(f, version)
	layerIDs := make(map[*ir.Node]int, len(order))
	for i, n := range order {
		layerIDs[n] = i
	}

	cw := newConstantWriter(binW)
	namer := newUniqueNamer()

	root := newXMLElement("net")
	if !opts.Deterministic || f.Name() != "" {
		root.setAttr("name", f.Name())
	}
	root.setAttr("version", strconv.Itoa(int(version)))

	layers := root.child("layers")
	var edges []edge
	for _, n := range order {
		layer := layers.child("layer")
		layer.setAttr("id", strconv.Itoa(layerIDs[n]))
		if !(opts.Deterministic && n.NameIsAutoGenerated()) {
			layer.setAttr("name", namer.claim(n.FriendlyName()))
		}
		layer.setAttr("type", translateTypeName(n.TypeName()))
		layer.setAttr("version", n.Op().Opset())

		if err := appendDataElement(layer, n, cw); err != nil {
			return err
		}
		if version == V11 {
			rtInfoElement(layer, n.RTInfo(), nil)
		}

		skipPeephole := version == V10 && n.TypeName() == "LSTMCell"
		if n.NumInputs() > 0 {
			input := layer.child("input")
			for i := 0; i < n.NumInputs(); i++ {
				if skipPeephole && i == 6 {
					continue
				}
				port := input.child("port")
				port.setAttr("id", strconv.Itoa(i))
				port.setAttr("precision", n.Input(i).ElementType().PrecisionName())
				appendPortDims(port, n.Input(i).Shape())
				edges = append(edges, edge{
					fromLayer: layerIDs[n.Input(i).Node],
					fromPort:  n.Input(i).Node.NumInputs() + n.Input(i).Index,
					toLayer:   layerIDs[n],
					toPort:    i,
				})
			}
		}

		if n.NumOutputs() > 0 && n.TypeName() != "Result" {
			output := layer.child("output")
			for i := 0; i < n.NumOutputs(); i++ {
				o := n.Output(i)
				port := output.child("port")
				port.setAttr("id", strconv.Itoa(n.NumInputs()+i))
				port.setAttr("precision", o.ElementType().PrecisionName())
				if names := o.Descriptor().Names(); len(names) > 0 {
					port.setAttr("names", escapeTensorNames(names))
				}
				appendPortDims(port, o.Shape())
			}
		}
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].fromLayer < edges[j].fromLayer })
	edgesElem := root.child("edges")
	for _, e := range edges {
		edgesElem.child("edge").
			setAttr("from-layer", strconv.Itoa(e.fromLayer)).
			setAttr("from-port", strconv.Itoa(e.fromPort)).
			setAttr("to-layer", strconv.Itoa(e.toLayer)).
			setAttr("to-port", strconv.Itoa(e.toPort))
	}

	if version == V11 {
		rtInfoElement(root, f.RTInfo(), map[string]bool{"version": true})
	}

	return root.writeDocument(xmlW)
}

func appendPortDims(port *xmlElement, shape dims.PartialShape) {
	if !shape.RankIsStatic() {
		return
	}
	for i := 0; i < shape.Rank(); i++ {
		dim := port.child("dim")
		dim.text = formatDim(shape.Dim(i))
	}
}

// appendDataElement records the node's attributes into a <data> element.
// Payload attributes go through the constant writer and appear as
// element_type/shape/offset/size. An empty attribute set emits nothing.
func appendDataElement(layer *xmlElement, n *ir.Node, cw *constantWriter) error {
	recorder := ir.NewAttrRecorder()
	if !n.VisitAttributes(recorder) {
		return nil
	}
	names := recorder.Names()
	if len(names) == 0 {
		return nil
	}
	data := newXMLElement("data")
	for _, name := range names {
		value, _ := recorder.Value(name)
		switch value.Kind {
		case ir.AttrBool:
			data.setAttr(name, strconv.FormatBool(value.Bool))
		case ir.AttrInt:
			data.setAttr(name, strconv.FormatInt(value.Int, 10))
		case ir.AttrFloat:
			data.setAttr(name, strconv.FormatFloat(value.Float, 'g', -1, 64))
		case ir.AttrString:
			data.setAttr(name, value.Str)
		case ir.AttrInts:
			data.setAttr(name, joinInt64s(value.Ints))
		case ir.AttrFloats:
			data.setAttr(name, joinFloat64s(value.Floats))
		case ir.AttrStrings:
			data.setAttr(name, strings.Join(value.Strs, ","))
		case ir.AttrPayload:
			payload := value.Payload
			if payload == nil {
				return errors.Errorf("node %s: payload attribute %q is empty", n.FriendlyName(), name)
			}
			offset, size, err := cw.write(payload.Data())
			if err != nil {
				return err
			}
			data.setAttr("element_type", payload.ElementType().PrecisionName())
			data.setAttr("shape", joinInt64s(payload.Dimensions()))
			data.setAttr("offset", strconv.FormatInt(offset, 10))
			data.setAttr("size", strconv.FormatInt(size, 10))
		default:
			return errors.Errorf("node %s: attribute %q has a kind the codec cannot serialize",
				n.FriendlyName(), name)
		}
	}
	layer.children = append(layer.children, data)
	return nil
}

func joinInt64s(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

func joinFloat64s(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
