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
package diag

// Code ranges, reserved by phase. Each constant here is load-bearing: a
// released (code, category) pair must never be repurposed, so tests that
// snapshot emitted codes stay stable across compiler versions.
const (
	// Lexer errors live in the Resolve phase's reserved range (E0001-E0035):
	// pcc treats lexing as the first stage of name/structure resolution for
	// diagnostic-numbering purposes.
	ELexUnterminatedString Code = "E0001"
	ELexUnknownUnit        Code = "E0002"
	ELexInvalidEscape      Code = "E0003"
	ESyntax                Code = "E0005" // parser: malformed grammar production

	// Resolve phase: E0001-E0035, W0001-W0002.
	EDuplicateDecl       Code = "E0010" // duplicate declaration, or a second writer task for one shared buffer
	EUnresolvedName      Code = "E0011"
	EMonomorphicTypeArgs Code = "E0012" // monomorphic actor rejects type arguments
	EUnconsumedTap       Code = "E0023" // empty pipeline body / dangling tap
	WUnusedParam         Code = "W0001"
	WAmbiguousModalDelivery Code = "W0002"

	// Type inference: E0100-E0102.
	EUnknownType       Code = "E0100"
	EAmbiguousType     Code = "E0101"
	EAmbiguousPolyCall Code = "E0102"

	// Lowering/THIR certificate: E0200-E0206, obligations L1-L5.
	ETypeMismatch        Code = "E0200"
	EIllegalWidening     Code = "E0202"
	ENarrowingForbidden  Code = "E0203"
	EResidualTypeParam   Code = "E0204"
	EUnresolvedWireType  Code = "E0205"
	ECertificateInternal Code = "E0206"

	// Analysis (SDF): E0300-E0312, W0300.
	EDimensionUnresolved Code = "E0300"
	EDimensionConflict   Code = "E0301"
	EShapeConflict       Code = "E0302"
	ERateMismatch        Code = "E0303"
	ENoRepetitionVector  Code = "E0304"
	EFeedbackNoDelay     Code = "E0305"
	ECrossClockMismatch  Code = "E0306"
	EBufferBoundExceeded Code = "E0307"
	EModalSwitchType     Code = "E0308"
	EModalNoControl      Code = "E0018"
	EModalNoSwitchSource Code = "E0019"
	EModalBadSwitchRef   Code = "E0020"
	EModalDuplicateMode  Code = "E0021"
	EModalSwitchNotInt   Code = "E0310"
	EBindContractMismatch Code = "E0312"
	WHighRepetitionCount Code = "W0300"

	// Schedule: E0400, W0400.
	EScheduleCyclic  Code = "E0400"
	WMissedDeadline  Code = "W0400"

	// Graph: E0500.
	EGraphTopology Code = "E0500"

	// Pipeline certification: E0600-E0603, obligations H1-H3, L1-L5, S1-S2, R1-R2.
	ECertL1 Code = "E0601"
	ECertS  Code = "E0602"
	ECertR  Code = "E0603"

	// External compiler invocation: a non-zero exit from the final native
	// build step, same category as ECertR since both represent a broken
	// build obligation at the final stage.
	EExternalCompile Code = "E0604"

	// Usage: E0700.
	EUsage Code = "E0700"
)
