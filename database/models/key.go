// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package models

import "time"

// Key is a wallet key record. The signing key is stored encrypted with the
// process master key and is only decrypted transiently for signing. Name
// identifies well-known treasury keys ("cashRegister", "moneyBox",
// "collateral").
type Key struct {
	ID            uint `gorm:"primaryKey"`
	Address       string
	VKey          []byte
	SKeyEncrypted []byte
	Script        string
	ScriptAddress string
	Name          string `gorm:"index"`
	CreatedAt     time.Time
}

func (Key) TableName() string {
	return "key"
}
