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

// Package ops implements the concrete operation kinds of the graph engine:
// Parameter, Constant, Result, element-wise arithmetic, Reshape, Slice,
// Reverse and LSTMCell.
//
// Each kind is a struct implementing ir.Op plus a constructor that builds a
// connected, validated *ir.Node. The package also keeps the operation
// registry the deserializer uses to instantiate kinds by (type name, opset).
package ops

import (
	"sync"

	"github.com/gomlx/irgraph/ir"
	"github.com/pkg/errors"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() ir.Op)
)

// Register installs a factory producing a default-initialized operation of
// the given type name. Later registrations of the same name win, so
// applications can override built-in kinds.
func Register(typeName string, factory func() ir.Op) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[typeName] = factory
}

// Create instantiates a registered operation kind by type name.
func Create(typeName string) (ir.Op, error) {
	registryMu.RLock()
	factory, found := registry[typeName]
	registryMu.RUnlock()
	if !found {
		return nil, errors.Errorf("unknown operation type %q", typeName)
	}
	return factory(), nil
}

// Registered reports whether the type name has a registered factory.
func Registered(typeName string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, found := registry[typeName]
	return found
}

func init() {
	Register("Parameter", func() ir.Op { return &Parameter{} })
	Register("Constant", func() ir.Op { return &Constant{} })
	Register("Result", func() ir.Op { return &Result{} })
	Register("Add", func() ir.Op { return &Add{} })
	Register("Relu", func() ir.Op { return &Relu{} })
	Register("Reshape", func() ir.Op { return &Reshape{} })
	Register("Slice", func() ir.Op { return &Slice{} })
	Register("Reverse", func() ir.Op { return &Reverse{} })
	Register("LSTMCell", func() ir.Op { return &LSTMCell{} })
}
