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
package registry

// countPattern matches a count expression: a bare non-negative integer
// literal, a $name reference to a constructor parameter or call-site shape
// dimension, or a *-separated product of such terms (e.g. "$a*$shape0").
// This is the Go-regexp form; schemaV1 below embeds the same grammar with
// JSON string escaping.
const countPattern = `^(\$?[A-Za-z_][A-Za-z0-9_]*|[0-9]+)(\*(\$?[A-Za-z_][A-Za-z0-9_]*|[0-9]+))*$`

// schemaV1 is the JSON Schema (draft 2020-12) that every manifest must
// satisfy: reject unknown or missing fields, reject duplicates within the
// actor list, and require in_count/out_count to match the count-expression
// grammar rather than accepting an arbitrary string.
const schemaV1 = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://pipit-lang.dev/schema/actor-manifest-v1.json",
  "type": "object",
  "additionalProperties": false,
  "required": ["schema", "actors"],
  "properties": {
    "schema": { "const": 1 },
    "actors": {
      "type": "array",
      "uniqueItems": true,
      "items": { "$ref": "#/$defs/actor" }
    }
  },
  "$defs": {
    "actor": {
      "type": "object",
      "additionalProperties": false,
      "required": ["name", "type_params", "in_type", "in_count", "out_type", "out_count", "params"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "type_params": { "type": "integer", "minimum": 0 },
        "in_type": { "type": "string", "minLength": 1 },
        "in_count": { "type": "string", "minLength": 1, "pattern": "^(\\$?[A-Za-z_][A-Za-z0-9_]*|[0-9]+)(\\*(\\$?[A-Za-z_][A-Za-z0-9_]*|[0-9]+))*$" },
        "out_type": { "type": "string", "minLength": 1 },
        "out_count": { "type": "string", "minLength": 1, "pattern": "^(\\$?[A-Za-z_][A-Za-z0-9_]*|[0-9]+)(\\*(\\$?[A-Za-z_][A-Za-z0-9_]*|[0-9]+))*$" },
        "params": {
          "type": "array",
          "items": { "$ref": "#/$defs/param" }
        }
      }
    },
    "param": {
      "type": "object",
      "additionalProperties": false,
      "required": ["name", "type"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "type": { "type": "string", "minLength": 1 }
      }
    }
  }
}`
