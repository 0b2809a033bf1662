// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package lir

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/graph"
	"github.com/pipit-lang/pcc/pkg/types"
)

// Direction is a bind's data-flow direction relative to the compiled
// executable.
type Direction string

const (
	DirOut Direction = "out"
	DirIn  Direction = "in"
)

// EndpointKind is the transport a bind's external endpoint addresses.
type EndpointKind string

const (
	EndpointDatagram   EndpointKind = "datagram"
	EndpointUnixDgram  EndpointKind = "unix_datagram"
	EndpointSharedMem  EndpointKind = "shared_memory"
)

// Contract is a bind's data contract: dtype/shape from the writer edge,
// rate in tokens-per-second.
type Contract struct {
	Dtype  types.Wire
	Shape  []int64
	RateHz float64
}

// Endpoint is a bind's external-transport address, validated per each
// kind's own rules.
type Endpoint struct {
	Kind      EndpointKind
	Host      string // datagram
	Port      int    // datagram
	Path      string // unix_datagram
	Name      string // shared_memory
	Slots     int    // shared_memory
	SlotBytes int    // shared_memory
}

// Bind is one fully-resolved external-interface entry, as recorded in the
// interface-manifest artifact.
type Bind struct {
	Name      string
	StableID  uint64
	Direction Direction
	Contract  Contract
	Endpoint  Endpoint
}

// InferBinds derives one Bind per buffer whose name has an entry in
// endpoints; a buffer with no endpoint yields no Bind. taskRateHz maps each owning task name to its clock
// frequency, for the rate = tokens_per_iter · task_rate_hz contract;
// endpoints maps bind name to its raw endpoint string, sourced from an
// ast.BindStmt or a `--bind NAME=ENDPOINT` CLI override. sourceFingerprint
// is the program source's SHA-256, used in the stable-id hash.
//
// A buffer with an empty WriterGraph has no in-program writer at all — its
// graph.BufferEdge exists purely because it is read via @name and bound to
// an external endpoint. That configuration resolves to Direction in: the
// buffer's sole producer is outside the compiled executable.
func InferBinds(buffers []graph.BufferEdge, taskRateHz map[string]float64, endpoints map[string]string, sourceFingerprint [32]byte, bag *diag.Bag) []Bind {
	var binds []Bind

	for _, be := range buffers {
		raw, hasEndpoint := endpoints[be.Buffer]
		if !hasEndpoint {
			continue
		}

		ep, ok := parseEndpoint(raw, bag, be.Buffer)
		if !ok {
			continue
		}

		if be.WriterGraph == "" {
			binds = append(binds, inboundBind(be, ep, taskRateHz, sourceFingerprint))
			continue
		}

		rate := taskRateHz[taskName(be.WriterGraph)]

		b := Bind{
			Name:      be.Buffer,
			Direction: DirOut,
			Contract:  Contract{Dtype: be.Wire, RateHz: rate},
			Endpoint:  ep,
		}
		b.StableID = stableID(sourceFingerprint, taskName(be.WriterGraph), be.Buffer, string(b.Direction))

		binds = append(binds, b)

		for _, rg := range be.ReaderGraphs {
			rRate := taskRateHz[taskName(rg)]
			if rRate != rate {
				bag.Errorf(diag.EBindContractMismatch, zeroSpan,
					"bind %q: reader task rate %gHz disagrees with writer rate %gHz", be.Buffer, rRate, rate)
			}
		}
	}

	return binds
}

// inboundBind builds the Direction-in Bind for a buffer with no in-program
// writer: its contract rate is taken from its (first) reader task, since
// there is no writer task to take it from, and its stable id is likewise
// keyed on that reader task rather than an absent writer.
func inboundBind(be graph.BufferEdge, ep Endpoint, taskRateHz map[string]float64, sourceFingerprint [32]byte) Bind {
	var readerTask string
	if len(be.ReaderGraphs) > 0 {
		readerTask = taskName(be.ReaderGraphs[0])
	}

	b := Bind{
		Name:      be.Buffer,
		Direction: DirIn,
		Contract:  Contract{Dtype: be.Wire, RateHz: taskRateHz[readerTask]},
		Endpoint:  ep,
	}
	b.StableID = stableID(sourceFingerprint, readerTask, be.Buffer, string(b.Direction))

	return b
}

func taskName(subgraph string) string {
	name, _, _ := strings.Cut(subgraph, ".")
	return name
}

// parseEndpoint classifies and validates a raw endpoint string:
// `udp://host:port` for a datagram socket,
// `unix://absolute/path` for a Unix datagram, `shm://name?slots=N&slot_bytes=M`
// for shared memory.
func parseEndpoint(raw string, bag *diag.Bag, bindName string) (Endpoint, bool) {
	switch {
	case strings.HasPrefix(raw, "udp://"):
		hostport := strings.TrimPrefix(raw, "udp://")

		host, portStr, err := net.SplitHostPort(hostport)
		if err != nil {
			bag.Errorf(diag.EBindContractMismatch, zeroSpan, "bind %q: datagram endpoint requires host:port: %v", bindName, err)
			return Endpoint{}, false
		}

		port, err := strconv.Atoi(portStr)
		if err != nil {
			bag.Errorf(diag.EBindContractMismatch, zeroSpan, "bind %q: datagram port %q is not numeric", bindName, portStr)
			return Endpoint{}, false
		}

		return Endpoint{Kind: EndpointDatagram, Host: host, Port: port}, true

	case strings.HasPrefix(raw, "unix://"):
		path := strings.TrimPrefix(raw, "unix://")
		if !filepath.IsAbs(path) {
			bag.Errorf(diag.EBindContractMismatch, zeroSpan, "bind %q: unix datagram endpoint requires an absolute path, got %q", bindName, path)
			return Endpoint{}, false
		}

		return Endpoint{Kind: EndpointUnixDgram, Path: path}, true

	case strings.HasPrefix(raw, "shm://"):
		rest := strings.TrimPrefix(raw, "shm://")

		name, query, _ := strings.Cut(rest, "?")

		slots, slotBytes := 0, 0

		for _, kv := range strings.Split(query, "&") {
			k, v, _ := strings.Cut(kv, "=")

			n, err := strconv.Atoi(v)
			if err != nil {
				continue
			}

			switch k {
			case "slots":
				slots = n
			case "slot_bytes":
				slotBytes = n
			}
		}

		if slots <= 0 {
			bag.Errorf(diag.EBindContractMismatch, zeroSpan, "bind %q: shared-memory endpoint requires slots > 0", bindName)
			return Endpoint{}, false
		}

		if slotBytes <= 0 || slotBytes%8 != 0 {
			bag.Errorf(diag.EBindContractMismatch, zeroSpan, "bind %q: shared-memory endpoint requires slot_bytes a positive multiple of 8", bindName)
			return Endpoint{}, false
		}

		return Endpoint{Kind: EndpointSharedMem, Name: name, Slots: slots, SlotBytes: slotBytes}, true

	default:
		bag.Errorf(diag.EBindContractMismatch, zeroSpan, "bind %q: unrecognized endpoint scheme %q", bindName, raw)
		return Endpoint{}, false
	}
}

// stableID derives a 64-bit hash from (source fingerprint, task, buffer,
// role), deterministic across platforms for identical input. FNV-1a is
// sufficient here — the id only needs to be
// a stable, collision-resistant-enough key for a deploy-time lookup
// table, not a cryptographic commitment, and hash/fnv is stdlib and
// platform-independent, unlike relying on Go's randomized map iteration
// or runtime-specific hashing.
func stableID(sourceFingerprint [32]byte, task, buffer, role string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(sourceFingerprint[:])
	_, _ = h.Write([]byte(task))
	_, _ = h.Write([]byte(buffer))
	_, _ = h.Write([]byte(role))

	return h.Sum64()
}

// FormatStableID renders a stable id as the hex64 string the
// interface-manifest artifact's JSON schema expects.
func FormatStableID(id uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)

	return fmt.Sprintf("%x", b)
}
