package oem

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// 错误定义
var (
	ErrInvalidColor  = errors.New("invalid color")
	ErrInvalidConfig = errors.New("invalid oem config")
)

// Color RGBA 颜色
type Color struct {
	R, G, B, A uint8
}

// Hex 返回 #RRGGBB，带透明度时返回 #RRGGBBAA
func (c Color) Hex() string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

// MarshalText 以十六进制输出
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// ParseHexColor 解析 RGB / RRGGBB / RRGGBBAA，可带 # 前缀
func ParseHexColor(hex string) (Color, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")

	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]}) + "ff"
	case 6:
		s += "ff"
	case 8:
	default:
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}

	return Color{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// Config OEM 展示配置
type Config struct {
	Color       Color  `json:"color"`
	DisplayName string `json:"display_name"`
}

// NewConfig 创建展示配置，颜色在构造时解析
func NewConfig(hex, displayName string) (Config, error) {
	color, err := ParseHexColor(hex)
	if err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(displayName) == "" {
		return Config{}, fmt.Errorf("%w: empty display name", ErrInvalidConfig)
	}
	return Config{Color: color, DisplayName: displayName}, nil
}

// brandTable 内置品牌配置
var brandTable = map[Name][2]string{
	Acura:        {"#020202", "Acura"},
	Audi:         {"#000000", "Audi"},
	BMW:          {"#2E9BDA", "BMW"},
	BMWConnected: {"#2E9BDA", "BMW Connected"},
	Buick:        {"#333333", "Buick"},
	Cadillac:     {"#941711", "Cadillac"},
	Chevrolet:    {"#042F6B", "Chevrolet"},
	Chrysler:     {"#231F20", "Chrysler"},
	Dodge:        {"#000000", "Dodge"},
	Fiat:         {"#B50536", "Fiat"},
	Ford:         {"#003399", "Ford"},
	GMC:          {"#CC0033", "GMC"},
	Hyundai:      {"#00287A", "Hyundai"},
	Infiniti:     {"#1F1F1F", "Infiniti"},
	Jeep:         {"#374B00", "Jeep"},
	Kia:          {"#C21A30", "Kia"},
	LandRover:    {"#005A2B", "Land Rover"},
	Lexus:        {"#5B7F95", "Lexus"},
	Mercedes:     {"#222222", "Mercedes-Benz"},
	Nissan:       {"#C3002F", "Nissan"},
	NissanEV:     {"#2C7BB6", "Nissan EV"},
	Ram:          {"#000000", "Ram"},
	Tesla:        {"#CC0000", "Tesla"},
	Volkswagen:   {"#000F64", "Volkswagen"},
	Volvo:        {"#000F2D", "Volvo"},
}

var builtinConfigs = func() map[Name]Config {
	m := make(map[Name]Config, len(brandTable))
	for name, entry := range brandTable {
		cfg, err := NewConfig(entry[0], entry[1])
		if err != nil {
			panic(fmt.Sprintf("oem: brand table entry %s: %v", name, err))
		}
		m[name] = cfg
	}
	return m
}()

// ConfigFor 返回内置展示配置
func ConfigFor(o OEM) (Config, bool) {
	cfg, ok := builtinConfigs[o.name]
	return cfg, ok
}
