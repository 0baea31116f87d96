package provision

import (
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"github.com/henryk/ipsec-me/internal/devices"
	"github.com/henryk/ipsec-me/internal/models"
	"github.com/henryk/ipsec-me/internal/pki"
)

// Профиль импорта для strongSwan-клиента Android.
type strongSwanProfile struct {
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Remote struct {
		Addr string `json:"addr"`
		Cert string `json:"cert"`
	} `json:"remote"`
	Local struct {
		P12 string `json:"p12"`
	} `json:"local"`
}

// deviceProfileUUID — стабильный UUID профиля (v5 от id устройства):
// повторное скачивание и повторный импорт — тот же профиль, не дубликат.
func deviceProfileUUID(d *models.Device) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("ipsec-me.device.%d", d.ID))).String()
}

func renderStrongSwanProfile(d *models.Device, cert *models.Certificate, srv *models.VPNServer) ([]byte, error) {
	p12, err := pki.PKCS12(cert, "", false)
	if err != nil {
		return nil, err
	}
	var p strongSwanProfile
	p.UUID = deviceProfileUUID(d)
	p.Name = srv.Name
	p.Type = "ikev2-cert"
	p.Remote.Addr = srv.ExternalHostname
	if srv.Certificate != nil {
		// якорь доверия — серверный сертификат, пока нет экспорта цепочки CA
		p.Remote.Cert = base64.StdEncoding.EncodeToString(srv.Certificate.CertDER)
	}
	p.Local.P12 = base64.StdEncoding.EncodeToString(p12)
	return json.Marshal(&p)
}

var mobileConfigTpl = template.Must(template.New("mobileconfig").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>PayloadContent</key>
	<array>
		<dict>
			<key>PayloadType</key><string>com.apple.vpn.managed</string>
			<key>PayloadIdentifier</key><string>me.ipsec.vpn.{{.ProfileUUID}}</string>
			<key>PayloadUUID</key><string>{{.VPNUUID}}</string>
			<key>PayloadVersion</key><integer>1</integer>
			<key>UserDefinedName</key><string>{{.ServerName}}</string>
			<key>VPNType</key><string>IKEv2</string>
			<key>IKEv2</key>
			<dict>
				<key>RemoteAddress</key><string>{{.Hostname}}</string>
				<key>RemoteIdentifier</key><string>{{.Hostname}}</string>
				<key>LocalIdentifier</key><string>{{.Identity}}</string>
				<key>AuthenticationMethod</key><string>Certificate</string>
				<key>PayloadCertificateUUID</key><string>{{.P12UUID}}</string>
			</dict>
		</dict>
		<dict>
			<key>PayloadType</key><string>com.apple.security.pkcs12</string>
			<key>PayloadIdentifier</key><string>me.ipsec.p12.{{.ProfileUUID}}</string>
			<key>PayloadUUID</key><string>{{.P12UUID}}</string>
			<key>PayloadVersion</key><integer>1</integer>
			<key>Password</key><string>{{.P12Password}}</string>
			<key>PayloadContent</key><data>{{.P12Base64}}</data>
		</dict>
	</array>
	<key>PayloadDisplayName</key><string>{{.ServerName}} VPN</string>
	<key>PayloadIdentifier</key><string>me.ipsec.profile.{{.ProfileUUID}}</string>
	<key>PayloadUUID</key><string>{{.ProfileUUID}}</string>
	<key>PayloadType</key><string>Configuration</string>
	<key>PayloadVersion</key><integer>1</integer>
</dict>
</plist>
`))

type mobileConfigData struct {
	ProfileUUID string
	VPNUUID     string
	P12UUID     string
	ServerName  string
	Hostname    string
	Identity    string
	P12Password string
	P12Base64   string
}

// xmlEscape — текстовые значения в plist обязаны быть экранированы,
// иначе имя вроде "Acme & Co" ломает документ.
func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func renderMobileConfig(d *models.Device, cert *models.Certificate, srv *models.VPNServer) ([]byte, error) {
	// одноразовый пароль: iOS требует запароленный PKCS#12, пароль
	// вкладывается в тот же профиль
	password, err := devices.GenerateSecret(0)
	if err != nil {
		return nil, err
	}
	p12, err := pki.PKCS12(cert, password, false)
	if err != nil {
		return nil, err
	}

	identity := d.Identity
	if identity == "" && d.VPNUser != nil {
		identity = d.VPNUser.Account.Email
	}

	var b strings.Builder
	err = mobileConfigTpl.Execute(&b, mobileConfigData{
		ProfileUUID: deviceProfileUUID(d),
		VPNUUID:     uuid.NewString(),
		P12UUID:     uuid.NewString(),
		ServerName:  xmlEscape(srv.Name),
		Hostname:    xmlEscape(srv.ExternalHostname),
		Identity:    xmlEscape(identity),
		P12Password: xmlEscape(password),
		P12Base64:   base64.StdEncoding.EncodeToString(p12),
	})
	if err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}
