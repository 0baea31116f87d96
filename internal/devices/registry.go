package devices

import (
	"errors"
	"fmt"
)

// Стратегия выдачи учётных данных для вида устройства.
type Strategy string

const (
	StrategyPSK             Strategy = "psk"
	StrategyUserCertificate Strategy = "user_certificate"
)

// Kind — описатель вида устройства. Новые виды — записи в реестре,
// а не новые типы.
type Kind struct {
	Type     string   `json:"type"`
	Label    string   `json:"label"`
	Strategy Strategy `json:"strategy"`
}

var ErrUnknownKind = errors.New("unknown device kind")

var registry = []Kind{
	{Type: "generic_psk_xauth", Label: "Generic (PSK/XAUTH)", Strategy: StrategyPSK},
	{Type: "generic_user_certificate", Label: "Generic (User Certificate)", Strategy: StrategyUserCertificate},
	{Type: "android_native", Label: "Android (4.4+, native client)", Strategy: StrategyPSK},
	{Type: "android_strongswan", Label: "Android (4.4+, strongSwan client)", Strategy: StrategyUserCertificate},
	{Type: "ios_10", Label: "iOS 10+, OS X 10+", Strategy: StrategyUserCertificate},
	{Type: "win_10", Label: "Windows 10+", Strategy: StrategyUserCertificate},
	{Type: "linux", Label: "Linux (generic)", Strategy: StrategyUserCertificate},
	{Type: "linux_deb", Label: "Linux .deb based (Ubuntu, Debian, Mate)", Strategy: StrategyUserCertificate},
	{Type: "linux_rpm", Label: "Linux .rpm based (Fedora, RedHat, CentOS)", Strategy: StrategyUserCertificate},
}

var byType = func() map[string]Kind {
	m := make(map[string]Kind, len(registry))
	for _, k := range registry {
		m[k.Type] = k
	}
	return m
}()

// All — все зарегистрированные виды в порядке регистрации (для списков UI).
func All() []Kind {
	out := make([]Kind, len(registry))
	copy(out, registry)
	return out
}

// Resolve находит вид по дискриминанту.
func Resolve(deviceType string) (Kind, error) {
	k, ok := byType[deviceType]
	if !ok {
		return Kind{}, fmt.Errorf("%w: %q", ErrUnknownKind, deviceType)
	}
	return k, nil
}
