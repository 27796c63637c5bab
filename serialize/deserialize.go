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

package serialize

import (
	"encoding/xml"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irgraph/ir"
	"github.com/gomlx/irgraph/ops"
	"github.com/gomlx/irgraph/types/element"
	"github.com/gomlx/irgraph/types/tensor"
	"github.com/pkg/errors"
)

type xmlNet struct {
	XMLName xml.Name   `xml:"net"`
	Name    string     `xml:"name,attr"`
	Version int        `xml:"version,attr"`
	Layers  []xmlLayer `xml:"layers>layer"`
	Edges   []xmlEdge  `xml:"edges>edge"`
	RTInfo  *xmlRTInfo `xml:"rt_info"`
}

type xmlLayer struct {
	ID      int        `xml:"id,attr"`
	Name    string     `xml:"name,attr"`
	Type    string     `xml:"type,attr"`
	Version string     `xml:"version,attr"`
	Data    *xmlData   `xml:"data"`
	RTInfo  *xmlRTInfo `xml:"rt_info"`
	Input   *xmlPorts  `xml:"input"`
	Output  *xmlPorts  `xml:"output"`
}

type xmlData struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

func (d *xmlData) attr(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, a := range d.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

type xmlPorts struct {
	Ports []xmlPort `xml:"port"`
}

type xmlPort struct {
	ID    int    `xml:"id,attr"`
	Names string `xml:"names,attr"`
}

// splitTensorNames undoes the comma-escaped join of tensor name aliases.
func splitTensorNames(text string) []string {
	if text == "" {
		return nil
	}
	var names []string
	var current strings.Builder
	for i := 0; i < len(text); i++ {
		switch {
		case text[i] == '\\' && i+1 < len(text) && text[i+1] == ',':
			current.WriteByte(',')
			i++
		case text[i] == ',':
			names = append(names, current.String())
			current.Reset()
		default:
			current.WriteByte(text[i])
		}
	}
	names = append(names, current.String())
	return names
}

type xmlEdge struct {
	FromLayer int `xml:"from-layer,attr"`
	FromPort  int `xml:"from-port,attr"`
	ToLayer   int `xml:"to-layer,attr"`
	ToPort    int `xml:"to-port,attr"`
}

type xmlRTInfo struct {
	Attributes []xmlRTAttr `xml:"attribute"`
}

type xmlRTAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Deserialize rebuilds a function from its topology document and binary
// payload blob. The restored graph is fully re-validated before it is
// returned.
func Deserialize(xmlReader io.Reader, bin []byte) (*ir.Function, error) {
	var net xmlNet
	if err := xml.NewDecoder(xmlReader).Decode(&net); err != nil {
		return nil, errors.Wrap(err, "parsing topology document")
	}
	if Version(net.Version) != V10 && Version(net.Version) != V11 {
		return nil, errors.Errorf("unsupported container version %d", net.Version)
	}

	var f *ir.Function
	err := exceptions.TryCatch[error](func() {
		f = rebuild(&net, bin)
	})
	if err != nil {
		return nil, err
	}
	return f, f.Validate()
}

// DeserializeFiles reads a .xml/.bin file pair. An empty binPath derives from
// xmlPath by extension replacement; a missing binary file yields an empty
// payload blob.
func DeserializeFiles(xmlPath, binPath string) (*ir.Function, error) {
	if binPath == "" {
		binPath = BinPathFor(xmlPath)
	}
	xmlFile, err := os.Open(xmlPath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", xmlPath)
	}
	defer xmlFile.Close()

	bin, err := os.ReadFile(binPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "reading %q", binPath)
	}
	return Deserialize(xmlFile, bin)
}

func rebuild(net *xmlNet, bin []byte) *ir.Function {
	version := Version(net.Version)
	nodes := make(map[int]*ir.Node, len(net.Layers))
	// Output ports are resolved through their serialized ids: producers may
	// have port id gaps (V10 drops the LSTMCell peephole input).
	outputPortIndex := make(map[int]map[int]int, len(net.Layers))

	edgesTo := make(map[int][]xmlEdge)
	for _, e := range net.Edges {
		edgesTo[e.ToLayer] = append(edgesTo[e.ToLayer], e)
	}

	var params, results []*ir.Node
	for _, layer := range net.Layers {
		typeName := reverseTranslateTypeName(layer.Type)
		op, err := ops.Create(typeName)
		if err != nil {
			exceptions.Panicf("layer %d (%s): %v", layer.ID, layer.Name, err)
		}
		restoreAttributes(op, &layer, bin)

		incoming := edgesTo[layer.ID]
		sort.Slice(incoming, func(i, j int) bool { return incoming[i].ToPort < incoming[j].ToPort })
		inputs := make([]ir.Output, 0, len(incoming))
		for _, e := range incoming {
			producer, found := nodes[e.FromLayer]
			if !found {
				exceptions.Panicf("layer %d references undeclared producer layer %d", layer.ID, e.FromLayer)
			}
			outIndex, found := outputPortIndex[e.FromLayer][e.FromPort]
			if !found {
				exceptions.Panicf("layer %d references unknown port %d of layer %d",
					layer.ID, e.FromPort, e.FromLayer)
			}
			inputs = append(inputs, producer.Output(outIndex))
		}

		n := ir.NewNode(op, inputs...)
		n.ValidateAndInferTypes()
		if layer.Name != "" {
			n.SetFriendlyName(layer.Name)
		}
		if layer.RTInfo != nil {
			for _, a := range layer.RTInfo.Attributes {
				n.RTInfo()[a.Name] = a.Value
			}
		}
		nodes[layer.ID] = n

		ports := make(map[int]int)
		if layer.Output != nil {
			for i, port := range layer.Output.Ports {
				ports[port.ID] = i
				for _, alias := range splitTensorNames(port.Names) {
					n.OutputDescriptor(i).AddName(alias)
				}
			}
		} else {
			// Result layers carry no output section but still have one port.
			ports[len(inputs)] = 0
		}
		outputPortIndex[layer.ID] = ports

		switch typeName {
		case "Parameter":
			params = append(params, n)
		case "Result":
			results = append(results, n)
		}
	}

	f := ir.NewFunction(net.Name, results, params)
	f.RTInfo()["version"] = int64(version)
	if net.RTInfo != nil {
		for _, a := range net.RTInfo.Attributes {
			f.RTInfo()[a.Name] = a.Value
		}
	}
	return f
}

// restoreAttributes feeds the layer's <data> attributes back into the
// operation. Attribute kinds come from probing the freshly created operation
// with a recording visitor.
func restoreAttributes(op ir.Op, layer *xmlLayer, bin []byte) {
	probe := ir.NewAttrRecorder()
	if !op.VisitAttributes(probe) {
		return
	}
	values := make(map[string]ir.AttrValue)
	for _, name := range probe.Names() {
		declared, _ := probe.Value(name)
		if declared.Kind == ir.AttrPayload {
			values[name] = ir.AttrValue{Kind: ir.AttrPayload, Payload: readPayload(layer, bin)}
			continue
		}
		text, found := layer.Data.attr(name)
		if !found {
			continue
		}
		value, err := parseAttrValue(declared.Kind, text)
		if err != nil {
			exceptions.Panicf("layer %d (%s): attribute %q: %v", layer.ID, layer.Name, name, err)
		}
		values[name] = value
	}
	restorer := ir.NewAttrRestorer(values)
	op.VisitAttributes(restorer)
}

func parseAttrValue(kind ir.AttrKind, text string) (ir.AttrValue, error) {
	switch kind {
	case ir.AttrBool:
		v, err := strconv.ParseBool(text)
		return ir.AttrValue{Kind: kind, Bool: v}, err
	case ir.AttrInt:
		v, err := strconv.ParseInt(text, 10, 64)
		return ir.AttrValue{Kind: kind, Int: v}, err
	case ir.AttrFloat:
		v, err := strconv.ParseFloat(text, 64)
		return ir.AttrValue{Kind: kind, Float: v}, err
	case ir.AttrString:
		return ir.AttrValue{Kind: kind, Str: text}, nil
	case ir.AttrInts:
		values, err := splitInt64s(text)
		return ir.AttrValue{Kind: kind, Ints: values}, err
	case ir.AttrFloats:
		values, err := splitFloat64s(text)
		return ir.AttrValue{Kind: kind, Floats: values}, err
	case ir.AttrStrings:
		if text == "" {
			return ir.AttrValue{Kind: kind}, nil
		}
		return ir.AttrValue{Kind: kind, Strs: strings.Split(text, ",")}, nil
	default:
		return ir.AttrValue{}, errors.Errorf("kind the codec cannot restore")
	}
}

// readPayload rebuilds a constant tensor from the layer's
// element_type/shape/offset/size data attributes and the binary blob.
func readPayload(layer *xmlLayer, bin []byte) *tensor.Tensor {
	precision, found := layer.Data.attr("element_type")
	if !found {
		exceptions.Panicf("layer %d (%s): payload without element_type", layer.ID, layer.Name)
	}
	dtype, ok := element.FromPrecisionName(precision)
	if !ok {
		exceptions.Panicf("layer %d (%s): unknown element_type %q", layer.ID, layer.Name, precision)
	}
	shapeText, _ := layer.Data.attr("shape")
	dimensions, err := splitInt64s(shapeText)
	if err != nil {
		exceptions.Panicf("layer %d (%s): bad payload shape %q", layer.ID, layer.Name, shapeText)
	}
	offsetText, _ := layer.Data.attr("offset")
	sizeText, _ := layer.Data.attr("size")
	offset, err := strconv.ParseInt(offsetText, 10, 64)
	if err != nil {
		exceptions.Panicf("layer %d (%s): bad payload offset %q", layer.ID, layer.Name, offsetText)
	}
	size, err := strconv.ParseInt(sizeText, 10, 64)
	if err != nil {
		exceptions.Panicf("layer %d (%s): bad payload size %q", layer.ID, layer.Name, sizeText)
	}
	if offset < 0 || size < 0 || offset+size > int64(len(bin)) {
		exceptions.Panicf("layer %d (%s): payload [%d, %d) outside the %d-byte binary blob",
			layer.ID, layer.Name, offset, offset+size, len(bin))
	}
	return tensor.FromBytes(dtype, dimensions, bin[offset:offset+size])
}

func splitInt64s(text string) ([]int64, error) {
	if text == "" {
		return nil, nil
	}
	parts := strings.Split(text, ",")
	out := make([]int64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func splitFloat64s(text string) ([]float64, error) {
	if text == "" {
		return nil, nil
	}
	parts := strings.Split(text, ",")
	out := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
