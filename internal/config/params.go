// Copyright (c) 2025 Shell Reserve developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"github.com/toole-brendan/grinminer/internal/plugin"
)

// paramSetters maps each recognized parameter key to the SolverParams
// field it overlays. Unknown keys are logged and ignored by the caller.
var paramSetters = map[string]func(p *plugin.SolverParams, v uint32){
	"nthreads":      func(p *plugin.SolverParams, v uint32) { p.NThreads = v },
	"ntrims":        func(p *plugin.SolverParams, v uint32) { p.NTrims = v },
	"cpuload":       func(p *plugin.SolverParams, v uint32) { p.CPULoad = boolParam(v) },
	"device":        func(p *plugin.SolverParams, v uint32) { p.Device = v },
	"blocks":        func(p *plugin.SolverParams, v uint32) { p.Blocks = v },
	"tbp":           func(p *plugin.SolverParams, v uint32) { p.TPB = v },
	"expand":        func(p *plugin.SolverParams, v uint32) { p.Expand = v },
	"genablocks":    func(p *plugin.SolverParams, v uint32) { p.GenABlocks = v },
	"genatpb":       func(p *plugin.SolverParams, v uint32) { p.GenATPB = v },
	"genbtpb":       func(p *plugin.SolverParams, v uint32) { p.GenBTPB = v },
	"trimtpb":       func(p *plugin.SolverParams, v uint32) { p.TrimTPB = v },
	"tailtpb":       func(p *plugin.SolverParams, v uint32) { p.TailTPB = v },
	"recoverblocks": func(p *plugin.SolverParams, v uint32) { p.RecoverBlocks = v },
	"recovertpb":    func(p *plugin.SolverParams, v uint32) { p.RecoverTPB = v },
	"platform":      func(p *plugin.SolverParams, v uint32) { p.Platform = v },
	"edge_bits":     func(p *plugin.SolverParams, v uint32) { p.EdgeBits = v },
}

// boolParam implements the "1 -> true, else -> false" convention for
// cpuload specifically.
func boolParam(v uint32) uint32 {
	if v == 1 {
		return 1
	}
	return 0
}

// ParamLogger receives one call per unrecognized parameter key, so the
// caller can log-and-ignore it without this package depending on a
// logger.
type ParamLogger func(key string)

// ApplyParams overlays every recognized key in raw onto params. Unknown
// keys are reported to onUnknown (if non-nil) and otherwise ignored.
func ApplyParams(params *plugin.SolverParams, raw map[string]uint32, onUnknown ParamLogger) {
	for key, value := range raw {
		setter, ok := paramSetters[key]
		if !ok {
			if onUnknown != nil {
				onUnknown(key)
			}
			continue
		}
		setter(params, value)
	}
}
