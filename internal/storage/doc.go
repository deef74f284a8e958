/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package storage persists designs and page snapshots through a small
// key-value Gateway. Values are JSON documents grouped into named stores;
// secondary lookups use a top-level JSON field as the index key.
//
// Backends: memory (default, tests), sqlite (embedded, WAL), postgres,
// filesystem (one file per record) and s3. Open picks one from config.
package storage
