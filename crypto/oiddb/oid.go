package oiddb

import "encoding/asn1"

var (
	PublicKeyRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	PublicKeyECDSA   = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	PublicKeyEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}
	P256             = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
	P384             = asn1.ObjectIdentifier{1, 3, 132, 0, 34}
)
