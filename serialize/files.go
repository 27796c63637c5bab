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
	"os"
	"strings"

	"github.com/gomlx/irgraph/ir"
	"github.com/pkg/errors"
)

// BinPathFor derives the binary blob path from the topology document path by
// extension replacement.
func BinPathFor(xmlPath string) string {
	return strings.TrimSuffix(xmlPath, ".xml") + ".bin"
}

// SerializeToFiles writes the container to a .xml/.bin file pair. An empty
// binPath derives from xmlPath by extension replacement. On any failure both
// partially written files are removed.
func SerializeToFiles(f *ir.Function, xmlPath, binPath string, opts Options) (err error) {
	if !strings.HasSuffix(xmlPath, ".xml") {
		return errors.Errorf("topology path %q must end in .xml", xmlPath)
	}
	if binPath == "" {
		binPath = BinPathFor(xmlPath)
	}

	xmlFile, err := os.Create(xmlPath)
	if err != nil {
		return errors.Wrapf(err, "creating %q", xmlPath)
	}
	binFile, err := os.Create(binPath)
	if err != nil {
		xmlFile.Close()
		os.Remove(xmlPath)
		return errors.Wrapf(err, "creating %q", binPath)
	}
	defer func() {
		closeErr := xmlFile.Close()
		if err == nil {
			err = errors.Wrapf(closeErr, "closing %q", xmlPath)
		}
		closeErr = binFile.Close()
		if err == nil {
			err = errors.Wrapf(closeErr, "closing %q", binPath)
		}
		if err != nil {
			os.Remove(xmlPath)
			os.Remove(binPath)
		}
	}()

	return Serialize(f, xmlFile, binFile, opts)
}
