// Package discovery locates hubs on the local network with multicast DNS.
//
// Hubs advertise a "_home-assistant._tcp" service whose TXT records carry
// the base URL, software version, and location name. A scan broadcasts an
// mDNS query, collects advertisements until the timeout, and returns the
// hubs it heard from.
//
// Requires multicast support on the network interface and a firewall that
// allows mDNS (UDP port 5353). Hubs on other network segments are not
// visible.
package discovery
