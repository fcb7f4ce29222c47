package libgopro

import (
	"errors"
	"net"
)

// The camera access point hands out addresses from this network
var cameraNetwork = &net.IPNet{
	IP:   net.IPv4(10, 5, 5, 0).To4(),
	Mask: net.CIDRMask(24, 32),
}

// AutodiscoverCamera checks whether this host is connected to a camera
// access point and the camera answers session requests
func AutodiscoverCamera() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	host, ok := cameraHostFor(addrs)
	if !ok {
		return "", errors.New("not connected to a camera access point")
	}

	camera, err := CreateCamera(host)
	if err != nil {
		return "", err
	}
	if _, err = camera.ExecuteCommand(PathSession, nil); err != nil {
		return "", err
	}
	return host, nil
}

func cameraHostFor(addrs []net.Addr) (string, bool) {
	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		default:
			continue
		}
		if cameraNetwork.Contains(ip) && !ip.Equal(net.ParseIP(DefaultHost)) {
			return DefaultHost, true
		}
	}
	return "", false
}
