// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package anamnesis_test

// raceEnabled is true when the race detector is active.
// No test in this package reads it; the stress tests run at the same size
// with or without the race detector.
const raceEnabled = true
