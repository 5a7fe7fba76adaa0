package gateway

import "time"

// nowSeconds renders the current time as seconds-since-epoch float, the
// timestamp shape every outbound message on the wire protocol uses.
func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
