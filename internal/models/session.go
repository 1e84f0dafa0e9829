package models

import "time"

// Session 一次车辆连接授权尝试
// 只记录尝试元数据和短期授权码，不保存任何 token
type Session struct {
	ID          string    `json:"id" db:"id"`
	State       string    `json:"-" db:"state"`
	OEM         string    `json:"oem" db:"oem"`
	ClientID    string    `json:"client_id" db:"client_id"`
	RedirectURI string    `json:"redirect_uri" db:"redirect_uri"`
	Scope       []string  `json:"scope" db:"scope"`
	Approval    string    `json:"approval" db:"approval"`
	Status      string    `json:"status" db:"status"` // pending, authorized, denied, expired
	Code        string    `json:"code,omitempty" db:"code"`
	Error       string    `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// OEMEntry 目录条目，供前端渲染选择列表
type OEMEntry struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	DisplayName string `json:"display_name"`
	Color       string `json:"color"`
}
