/*
File: tld_reputation.go
Description: Static reputation datasets consulted by the Heuristic Engine
             (TLD weighting) and the Metadata Classifier's hardcoded
             name-keyword priors. Adapted from the teacher's ML-guard
             datasets: trimmed to the subsets actually consulted here and
             repurposed from a standalone bad/good scoring model into
             weighting/keyword inputs for this pipeline's tiers.
*/

package main

// commonLabels are infrastructure/CDN/vendor subdomain tokens that should
// never, on their own, trigger a name-keyword classification — a
// "known-good" allowlist consulted before any keyword match is applied.
var commonLabels = map[string]struct{}{
	"akadns": {}, "akamai": {}, "akamaiedge": {}, "akamaihd": {}, "akamaitechnologies": {},
	"akamaized": {}, "edgekey": {}, "edgesuite": {},
	"amazonaws": {}, "cloudfront": {}, "elb": {}, "s3": {}, "ec2": {},
	"cloudflare": {}, "cloudflare-dns": {}, "workers": {}, "cdn-cgi": {},
	"1e100": {}, "googleapis": {}, "googleusercontent": {}, "gstatic": {}, "appspot": {}, "ggpht": {},
	"azure": {}, "azureedge": {}, "azurewebsites": {}, "edgecast": {},
	"trafficmanager": {}, "cloudapp": {}, "windows": {},
	"fastly": {}, "fastlylb": {}, "netlify": {}, "vercel": {}, "herokuapp": {}, "firebaseapp": {},
	"api": {}, "apis": {}, "rest": {}, "graphql": {}, "rpc": {},
	"dns": {}, "host": {}, "hostname": {}, "ns1": {}, "ns2": {}, "ns3": {}, "ns4": {},
	"smtp": {}, "mail": {}, "webmail": {}, "vpn": {}, "www": {},
	"gateway": {}, "gw": {}, "proxy": {}, "relay": {}, "node": {}, "cluster": {},
	"status": {}, "health": {}, "monitor": {}, "log": {}, "logs": {},
	"app": {}, "apps": {}, "assets": {}, "cloud": {}, "dev": {}, "docs": {},
	"web": {}, "staging": {}, "stage": {}, "prod": {}, "production": {}, "beta": {},
	"account": {}, "accounts": {}, "auth": {}, "oauth": {}, "oauth2": {}, "sso": {},
	"login": {}, "signin": {}, "signup": {},
	"github": {}, "gitlab": {}, "bitbucket": {}, "slack": {}, "zoom": {},
}

// safeTLDs are given reduced weight since they carry generally high
// reputation across the corpus this pipeline observes.
var safeTLDs = map[string]struct{}{
	"io": {}, "ai": {}, "me": {}, "tv": {}, "app": {}, "dev": {}, "tech": {},
	"net": {}, "org": {}, "com": {}, "edu": {}, "gov": {}, "mil": {},
	"us": {}, "ca": {}, "uk": {}, "de": {}, "fr": {}, "nl": {}, "eu": {},
	"jp": {}, "au": {}, "nz": {},
}

// highRiskTLDs are given elevated weight in the Heuristic Engine's TLD
// signal, per §4.5.
var highRiskTLDs = map[string]struct{}{
	"accountant": {}, "bargains": {}, "best": {}, "bid": {}, "buzz": {}, "cam": {},
	"casa": {}, "cf": {}, "cfd": {}, "click": {}, "country": {}, "cricket": {},
	"cyou": {}, "date": {}, "faith": {}, "fun": {}, "ga": {},
	"gdn": {}, "gq": {}, "icu": {}, "kim": {}, "kred": {}, "lat": {}, "link": {},
	"loan": {}, "men": {}, "ml": {}, "mom": {}, "monster": {}, "mov": {}, "ooo": {},
	"party": {}, "pic": {}, "pics": {}, "pw": {}, "quest": {}, "racing": {},
	"rest": {}, "review": {}, "sbs": {}, "science": {}, "stream": {}, "surf": {},
	"tk": {}, "trade": {}, "uno": {}, "wang": {}, "win": {}, "work": {}, "xin": {},
	"zip": {},
}

// highRiskLabels feed the Metadata Classifier's tracker/malware
// name-keyword priors, extending the small hand-picked list in
// classifier.go with the teacher's broader abuse/warez/torrent vocabulary.
var highRiskLabels = map[string]struct{}{
	"abuse": {}, "anon": {}, "anonymous": {}, "carding": {}, "crack": {}, "ddos": {},
	"exploit": {}, "hack": {}, "hacker": {}, "leak": {}, "malware": {}, "phish": {},
	"phishing": {}, "spam": {}, "spoof": {}, "stresser": {}, "warez": {},
	"1337x": {}, "bittorrent": {}, "eztv": {}, "kickass": {}, "kickasstorrents": {},
	"limetorrents": {}, "magnet": {}, "nyaa": {}, "piratebay": {}, "rarbg": {},
	"rutracker": {}, "skidrow": {}, "thepiratebay": {}, "torrent": {}, "tracker": {},
	"yify": {}, "yts": {},
	"bulletproof": {}, "offshore": {}, "njalla": {}, "flokinet": {},
}
