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
	"io"
	"strings"

	"github.com/pkg/errors"
)

// xmlElement is a minimal write-only XML tree. The codec builds the whole
// document before writing so output bytes depend only on the tree contents:
// attributes keep insertion order, no namespace or mixed-content handling.
type xmlElement struct {
	name     string
	attrs    []xmlAttr
	children []*xmlElement
	text     string
}

type xmlAttr struct {
	name  string
	value string
}

func newXMLElement(name string) *xmlElement {
	return &xmlElement{name: name}
}

func (e *xmlElement) setAttr(name, value string) *xmlElement {
	for i := range e.attrs {
		if e.attrs[i].name == name {
			e.attrs[i].value = value
			return e
		}
	}
	e.attrs = append(e.attrs, xmlAttr{name: name, value: value})
	return e
}

func (e *xmlElement) child(name string) *xmlElement {
	c := newXMLElement(name)
	e.children = append(e.children, c)
	return c
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// write renders the element tree with tab indentation.
func (e *xmlElement) write(w io.Writer, depth int) error {
	indent := strings.Repeat("\t", depth)
	open := indent + "<" + e.name
	for _, a := range e.attrs {
		open += " " + a.name + `="` + xmlEscaper.Replace(a.value) + `"`
	}
	if len(e.children) == 0 && e.text == "" {
		_, err := io.WriteString(w, open+" />\n")
		return errors.WithStack(err)
	}
	if e.text != "" {
		_, err := io.WriteString(w, open+">"+xmlEscaper.Replace(e.text)+"</"+e.name+">\n")
		return errors.WithStack(err)
	}
	if _, err := io.WriteString(w, open+">\n"); err != nil {
		return errors.WithStack(err)
	}
	for _, c := range e.children {
		if err := c.write(w, depth+1); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, indent+"</"+e.name+">\n")
	return errors.WithStack(err)
}

// writeDocument renders the XML declaration followed by the root element.
func (e *xmlElement) writeDocument(w io.Writer) error {
	if _, err := io.WriteString(w, "<?xml version=\"1.0\"?>\n"); err != nil {
		return errors.WithStack(err)
	}
	return e.write(w, 0)
}
