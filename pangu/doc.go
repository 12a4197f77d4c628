// Copyright 2026 The panguweather Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package pangu runs the PanguWeather global forecast models from Go.
//
// # Overview
//
// PanguWeather is distributed as two ONNX graphs: a 6-hour model and a
// 24-hour model. Both map a pressure-level tensor (5 params x 13 levels x
// 721 x 1440) and a surface tensor (4 params x 721 x 1440) to the state
// one model step later. A forecast steps every 6 hours; every fourth step
// uses the 24-hour model, fed from its own previous output.
//
// # Basic Usage
//
//	import (
//	    "github.com/ai-models/panguweather/pangu"
//	)
//
//	func main() {
//	    ctx := context.Background()
//
//	    engine, err := pangu.NewEngine(ctx, pangu.RuntimeONNX, pangu.DefaultOptions())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer engine.Close()
//
//	    model := pangu.New("/path/to/assets", 240, 1)
//	    err = pangu.Run(ctx, model, pangu.RunConfig{
//	        FieldsPL:  pl,   // pangu.Collection
//	        FieldsSFC: sfc,
//	        Engine:    engine,
//	        Sink:      sink, // pangu.Sink
//	    })
//	}
//
// # Runtimes
//
//   - RuntimeONNX: ONNX Runtime via github.com/yalue/onnxruntime_go
//   - RuntimeNative: the pure Go Born ONNX executor
package pangu
