// Package identity assigns display names to participants. The first-ever
// visitor claims the host name and with it the initial operator role;
// everyone else draws a random name from the fixed pool. Assignment is
// purely client-local and the server never verifies it.
package identity

import (
	"math/rand"
)

// HostName is the reserved identity of the room host.
const HostName = "迪迦奥特曼"

var pool = []string{
	HostName, "戴拿奥特曼", "盖亚奥特曼", "阿古茹奥特曼",
	"奈克瑟斯奥特曼", "麦克斯奥特曼", "梦比优斯奥特曼", "赛罗奥特曼",
	"银河奥特曼", "维克特利奥特曼", "艾克斯奥特曼", "欧布奥特曼",
	"捷德奥特曼", "罗布奥特曼", "泰迦奥特曼", "泽塔奥特曼",
	"特利迦奥特曼", "德凯奥特曼", "布莱泽奥特曼", "雷古洛斯奥特曼",
}

// Pool returns a copy of the full name pool, host included.
func Pool() []string {
	p := make([]string, len(pool))
	copy(p, pool)
	return p
}

// Assign draws a random name from names that is not in used and returns it
// together with a new used-set containing the draw. The input set is not
// mutated. When every name is taken the used-set resets, keeping only the
// host name reserved, and drawing resumes from the refreshed pool.
func Assign(names []string, used map[string]struct{}, rng *rand.Rand) (string, map[string]struct{}) {
	available := make([]string, 0, len(names))
	for _, name := range names {
		if _, taken := used[name]; !taken {
			available = append(available, name)
		}
	}

	if len(available) == 0 {
		return Assign(names, map[string]struct{}{HostName: {}}, rng)
	}

	picked := available[rng.Intn(len(available))]

	next := make(map[string]struct{}, len(used)+1)
	for name := range used {
		next[name] = struct{}{}
	}
	next[picked] = struct{}{}
	return picked, next
}
