package oem

import (
	"errors"
	"fmt"
	"strings"
)

// Name OEM 规范标识
type Name string

// 支持的 OEM，顺序即默认展示顺序
const (
	Acura        Name = "acura"
	Audi         Name = "audi"
	BMW          Name = "bmw"
	BMWConnected Name = "bmwConnected"
	Buick        Name = "buick"
	Cadillac     Name = "cadillac"
	Chevrolet    Name = "chevrolet"
	Chrysler     Name = "chrysler"
	Dodge        Name = "dodge"
	Fiat         Name = "fiat"
	Ford         Name = "ford"
	GMC          Name = "gmc"
	Hyundai      Name = "hyundai"
	Infiniti     Name = "infiniti"
	Jeep         Name = "jeep"
	Kia          Name = "kia"
	LandRover    Name = "landrover"
	Lexus        Name = "lexus"
	Mercedes     Name = "mercedes"
	Nissan       Name = "nissan"
	NissanEV     Name = "nissanev"
	Ram          Name = "ram"
	Tesla        Name = "tesla"
	Volkswagen   Name = "volkswagen"
	Volvo        Name = "volvo"
)

// 错误定义
var (
	ErrUnknownOEM   = errors.New("unknown oem")
	ErrDuplicateOEM = errors.New("duplicate oem")
)

// catalogNames 默认目录，只读
var catalogNames = [...]Name{
	Acura, Audi, BMW, BMWConnected, Buick, Cadillac,
	Chevrolet, Chrysler, Dodge, Fiat, Ford, GMC,
	Hyundai, Infiniti, Jeep, Kia, LandRover, Lexus,
	Mercedes, Nissan, NissanEV, Ram, Tesla, Volkswagen,
	Volvo,
}

// byFolded 小写形式 -> 规范标识
var byFolded = func() map[string]Name {
	m := make(map[string]Name, len(catalogNames))
	for _, n := range catalogNames {
		m[strings.ToLower(string(n))] = n
	}
	return m
}()

// OEM 车辆制造商，零值表示未选择
type OEM struct {
	name Name
}

// Name 返回规范标识
func (o OEM) Name() Name {
	return o.name
}

// String 返回规范标识字符串
func (o OEM) String() string {
	return string(o.name)
}

// IsZero 是否为零值
func (o OEM) IsZero() bool {
	return o.name == ""
}

// DisplayLabel 展示用标签，即规范标识的大写形式
func (o OEM) DisplayLabel() string {
	return strings.ToUpper(string(o.name))
}

// MarshalText 实现 encoding.TextMarshaler
func (o OEM) MarshalText() ([]byte, error) {
	return []byte(o.name), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，输入经过 Resolve 校验
func (o *OEM) UnmarshalText(text []byte) error {
	resolved, err := Resolve(string(text))
	if err != nil {
		return err
	}
	*o = resolved
	return nil
}

// All 返回默认目录的副本
func All() []OEM {
	oems := make([]OEM, len(catalogNames))
	for i, n := range catalogNames {
		oems[i] = OEM{name: n}
	}
	return oems
}

// Resolve 忽略大小写解析 OEM 标识，不会回退到任何默认值
func Resolve(raw string) (OEM, error) {
	folded := strings.ToLower(strings.TrimSpace(raw))
	if folded == "" {
		return OEM{}, fmt.Errorf("%w: empty name", ErrUnknownOEM)
	}

	name, ok := byFolded[folded]
	if !ok {
		return OEM{}, fmt.Errorf("%w: %q", ErrUnknownOEM, raw)
	}

	return OEM{name: name}, nil
}

// Subset 按给定顺序解析一组 OEM，用于构造自定义列表
func Subset(raw ...string) ([]OEM, error) {
	oems := make([]OEM, 0, len(raw))
	seen := make(map[Name]bool, len(raw))

	for _, r := range raw {
		o, err := Resolve(r)
		if err != nil {
			return nil, err
		}
		if seen[o.name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOEM, o.name)
		}
		seen[o.name] = true
		oems = append(oems, o)
	}

	return oems, nil
}
