package bootstrap

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"chorddht/internal/config"
	"chorddht/internal/domain"
)

// Route53Bootstrap discovers ring peers from SRV records in a Route53
// hosted zone, and upserts/deletes its own SRV record on Register/Deregister.
type Route53Bootstrap struct {
	client       *route53.Client
	hostedZoneID string
	domainSuffix string
	ttl          int64
}

// NewRoute53Bootstrap loads the default AWS config and returns a bootstrap
// backed by the given hosted zone.
func NewRoute53Bootstrap(cfg config.Route53Config) (*Route53Bootstrap, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := newRoute53Client(ctx)
	if err != nil {
		return nil, err
	}
	return &Route53Bootstrap{
		client:       client,
		hostedZoneID: cfg.HostedZoneID,
		domainSuffix: strings.TrimSuffix(cfg.DomainSuffix, "."),
		ttl:          cfg.TTL,
	}, nil
}

func newRoute53Client(ctx context.Context) (*route53.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return route53.NewFromConfig(awsCfg), nil
}

// Discover lists SRV records under the hosted zone matching domainSuffix
// and resolves each target host to its current addresses.
func (r *Route53Bootstrap) Discover(ctx context.Context) ([]string, error) {
	var endpoints []string
	input := &route53.ListResourceRecordSetsInput{
		HostedZoneId: aws.String(r.hostedZoneID),
	}
	paginator := route53.NewListResourceRecordSetsPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: list records: %w", err)
		}
		for _, rrset := range page.ResourceRecordSets {
			if rrset.Type != types.RRTypeSrv {
				continue
			}
			if !strings.HasSuffix(strings.TrimSuffix(*rrset.Name, "."), r.domainSuffix) {
				continue
			}
			for _, rr := range rrset.ResourceRecords {
				var prio, weight, port int
				var target string
				if _, err := fmt.Sscanf(*rr.Value, "%d %d %d %s", &prio, &weight, &port, &target); err != nil {
					continue
				}
				target = strings.TrimSuffix(target, ".")
				ips, err := net.LookupHost(target)
				if err != nil {
					continue
				}
				for _, ip := range ips {
					endpoints = append(endpoints, fmt.Sprintf("%s:%d", ip, port))
				}
			}
		}
	}
	return endpoints, nil
}

// Register upserts an SRV record for self under the hosted zone.
func (r *Route53Bootstrap) Register(ctx context.Context, self domain.NodeRef) error {
	host, port, err := net.SplitHostPort(self.Addr)
	if err != nil {
		return err
	}
	return r.changeRecord(ctx, types.ChangeActionUpsert, self.ID.String(), host, port)
}

// Deregister removes self's SRV record from the hosted zone.
func (r *Route53Bootstrap) Deregister(ctx context.Context, self domain.NodeRef) error {
	host, port, err := net.SplitHostPort(self.Addr)
	if err != nil {
		return err
	}
	return r.changeRecord(ctx, types.ChangeActionDelete, self.ID.String(), host, port)
}

func (r *Route53Bootstrap) changeRecord(ctx context.Context, action types.ChangeAction, nodeID, host, port string) error {
	recordName := fmt.Sprintf("%s.%s.", nodeID, r.domainSuffix)
	host = strings.TrimSuffix(host, ".")
	input := &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(r.hostedZoneID),
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{
				{
					Action: action,
					ResourceRecordSet: &types.ResourceRecordSet{
						Name: aws.String(recordName),
						Type: types.RRTypeSrv,
						TTL:  aws.Int64(r.ttl),
						ResourceRecords: []types.ResourceRecord{
							{Value: aws.String(fmt.Sprintf("0 0 %s %s.", port, host))},
						},
					},
				},
			},
		},
	}
	_, err := r.client.ChangeResourceRecordSets(ctx, input)
	return err
}
