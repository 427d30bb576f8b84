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

package presence

import "hash/fnv"

// Palette is the fixed set of colors handed to participants.
var Palette = []string{
	"#E53935", "#1E88E5", "#43A047", "#FB8C00",
	"#8E24AA", "#00ACC1", "#F4511E", "#3949AB",
	"#7CB342", "#D81B60", "#00897B", "#6D4C41",
}

func paletteIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(Palette)))
}

// pickColor returns the color for userID, preferring the one it was given
// before, then its hashed slot, probing linearly past colors in use. When
// every color is taken the hashed slot is reused.
func pickColor(userID, previous string, inUse map[string]bool) string {
	if previous != "" && !inUse[previous] {
		return previous
	}

	start := paletteIndex(userID)
	for i := 0; i < len(Palette); i++ {
		color := Palette[(start+i)%len(Palette)]
		if !inUse[color] {
			return color
		}
	}
	return Palette[start]
}
