/*
 * Copyright 2026 The Tandem Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ot

// Transform rewrites op so that it can be applied after against, which was
// authored concurrently and has already been applied. Retain operations pass
// through, and transforming against a Retain is the identity.
//
// Pairs of concurrent inserts at the same position are ordered by AuthorID:
// the smaller id is treated as applied first. An insert that lands strictly
// inside a concurrently deleted range is swallowed, and the symmetric delete
// grows to cover it, so both arrival orders produce the same buffer.
func Transform(op, against Operation) Operation {
	if op.Kind == Retain || against.Kind == Retain {
		return op
	}

	switch op.Kind {
	case Insert:
		switch against.Kind {
		case Insert:
			return insertAfterInsert(op, against)
		case Delete:
			return insertAfterDelete(op, against)
		}
	case Delete:
		switch against.Kind {
		case Insert:
			return deleteAfterInsert(op, against)
		case Delete:
			return deleteAfterDelete(op, against)
		}
	}

	return op
}

// Rebase transforms op through applied, in order.
func Rebase(op Operation, applied []Operation) Operation {
	for _, a := range applied {
		op = Transform(op, a)
	}
	return op
}

func insertAfterInsert(op, against Operation) Operation {
	shift := against.Position < op.Position
	if against.Position == op.Position {
		shift = against.AuthorID <= op.AuthorID
	}

	if shift {
		op.Position += against.EffectiveLength()
	}
	return op
}

func insertAfterDelete(op, against Operation) Operation {
	switch {
	case op.Position <= against.Position:
	case op.Position >= against.end():
		op.Position -= against.Length
	default:
		op.Position = against.Position
		op.Content = ""
	}

	op.Position = clamp(op.Position)
	return op
}

func deleteAfterInsert(op, against Operation) Operation {
	switch {
	case against.Position <= op.Position:
		op.Position += against.EffectiveLength()
	case against.Position >= op.end():
	default:
		op.Length += against.EffectiveLength()
	}
	return op
}

func deleteAfterDelete(op, against Operation) Operation {
	opEnd, againstEnd := op.end(), against.end()

	switch {
	case opEnd <= against.Position:
		return op
	case op.Position >= againstEnd:
		op.Position = clamp(op.Position - against.Length)
		return op
	}

	overlap := minInt(opEnd, againstEnd) - maxInt(op.Position, against.Position)
	op.Position = minInt(op.Position, against.Position)
	op.Length = clamp(op.Length - overlap)
	return op
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
