/*
Package runpod implements a connector backed by the RunPod GraphQL API.

Pods are deployed with podFindAndDeployOnDemand under the name
gingo-<cluster>. A cluster's backendCreateParams are sent unchanged as the
deploy input, so any field RunPod accepts there (gpuTypeId, cloudType,
templateId, ports, ...) can be set from the clusters file.

The image name and disk sizes returned at deploy time are stored in
Pod.Extra and replayed through podEditJob when the pod is restarted.
Removal uses podTerminate.
*/
package runpod
