package upstream

// versionManifest is the top-level list of published versions.
type versionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []manifestEntry `json:"versions"`
}

type manifestEntry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1"`
}

// versionDescriptor is the per-version document naming the client package, libraries and asset index.
type versionDescriptor struct {
	ID         string    `json:"id"`
	AssetIndex assetRef  `json:"assetIndex"`
	Downloads  downloads `json:"downloads"`
	Libraries  []library `json:"libraries"`
}

type assetRef struct {
	ID   string `json:"id"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type downloads struct {
	Client *download `json:"client"`
}

type download struct {
	Path string `json:"path,omitempty"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type library struct {
	Name      string            `json:"name"`
	Downloads libraryDownloads  `json:"downloads"`
	Natives   map[string]string `json:"natives,omitempty"`
	Rules     []rule            `json:"rules,omitempty"`
}

type libraryDownloads struct {
	Artifact    *download           `json:"artifact,omitempty"`
	Classifiers map[string]download `json:"classifiers,omitempty"`
}

type rule struct {
	Action string `json:"action"`
	OS     *struct {
		Name string `json:"name"`
	} `json:"os,omitempty"`
}

// assetIndex maps logical asset names to content-addressed objects.
type assetIndex struct {
	Objects map[string]assetObject `json:"objects"`
}

type assetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// allowed evaluates library rules for platform. No rules means allowed; otherwise the last matching rule wins.
func allowed(rules []rule, platform string) bool {
	if len(rules) == 0 {
		return true
	}
	ok := false
	for _, r := range rules {
		if r.OS != nil && r.OS.Name != "" && r.OS.Name != platform {
			continue
		}
		ok = r.Action == "allow"
	}
	return ok
}
