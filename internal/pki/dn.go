package pki

import (
	"crypto/x509/pkix"
	"fmt"
	"strings"
)

// Распознаваемые типы атрибутов DN. Всё остальное — ErrInvalidSubject.
var dnSetters = map[string]func(n *pkix.Name, v string){
	"CN": func(n *pkix.Name, v string) { n.CommonName = v },
	"O":  func(n *pkix.Name, v string) { n.Organization = append(n.Organization, v) },
	"OU": func(n *pkix.Name, v string) { n.OrganizationalUnit = append(n.OrganizationalUnit, v) },
	"C":  func(n *pkix.Name, v string) { n.Country = append(n.Country, v) },
}

// ParseDN разбирает строку вида "CN=host, O=Example" в pkix.Name.
// Упрощённый RFC 4514: разделитель — запятая, без экранирования.
func ParseDN(dn string) (pkix.Name, error) {
	var name pkix.Name
	for _, part := range strings.Split(dn, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq <= 0 {
			return pkix.Name{}, fmt.Errorf("%w: component %q has no attribute type", ErrInvalidSubject, part)
		}
		attr := strings.ToUpper(strings.TrimSpace(part[:eq]))
		set, ok := dnSetters[attr]
		if !ok {
			return pkix.Name{}, fmt.Errorf("%w: unrecognized attribute %q", ErrInvalidSubject, attr)
		}
		set(&name, strings.TrimSpace(part[eq+1:]))
	}
	return name, nil
}

// JoinDN дописывает базовый суффикс к относительной части.
func JoinDN(relative, base string) string {
	if base == "" {
		return relative
	}
	if relative == "" {
		return base
	}
	return relative + ", " + base
}

// FormatDN — читаемое представление имени в том же синтаксисе, что
// принимает ParseDN. Порядок атрибутов фиксированный: CN, OU, O, C.
func FormatDN(name pkix.Name) string {
	var parts []string
	if name.CommonName != "" {
		parts = append(parts, "CN="+name.CommonName)
	}
	for _, ou := range name.OrganizationalUnit {
		parts = append(parts, "OU="+ou)
	}
	for _, o := range name.Organization {
		parts = append(parts, "O="+o)
	}
	for _, c := range name.Country {
		parts = append(parts, "C="+c)
	}
	return strings.Join(parts, ", ")
}
